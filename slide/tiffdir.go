package slide

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// TIFF tag and field-type constants used for pyramid metadata.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagImageDescription = 270
	tagTileWidth        = 322

	typeASCII = 2
	typeShort = 3
	typeLong  = 4
	typeLong8 = 16
)

// maxDirectories bounds the IFD walk against corrupt next-pointers.
const maxDirectories = 256

type directory struct {
	width       int
	height      int
	tiled       bool
	description string
}

// readDirectories walks the IFD chain of a classic TIFF or BigTIFF stream
// and returns per-directory size and layout information without touching
// pixel data.
func readDirectories(r io.ReadSeeker) ([]directory, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("short TIFF header: %w", err)
	}

	var order binary.ByteOrder
	switch string(hdr[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errors.New("not a TIFF file")
	}

	switch magic := order.Uint16(hdr[2:4]); magic {
	case 42:
		return readClassicDirectories(r, order, int64(order.Uint32(hdr[4:8])))
	case 43:
		// BigTIFF: the header continues with the offset size and an
		// 8-byte pointer to the first directory.
		if order.Uint16(hdr[4:6]) != 8 || order.Uint16(hdr[6:8]) != 0 {
			return nil, errors.New("unsupported BigTIFF header layout")
		}
		var off [8]byte
		if _, err := io.ReadFull(r, off[:]); err != nil {
			return nil, fmt.Errorf("short BigTIFF header: %w", err)
		}
		return readBigDirectories(r, order, int64(order.Uint64(off[:])))
	default:
		return nil, fmt.Errorf("unknown TIFF magic %d", magic)
	}
}

func readClassicDirectories(r io.ReadSeeker, order binary.ByteOrder, offset int64) ([]directory, error) {
	var dirs []directory
	for offset != 0 {
		if len(dirs) >= maxDirectories {
			return nil, errors.New("directory chain too long")
		}
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		var cnt [2]byte
		if _, err := io.ReadFull(r, cnt[:]); err != nil {
			return nil, err
		}
		n := int(order.Uint16(cnt[:]))

		entries := make([]byte, n*12+4)
		if _, err := io.ReadFull(r, entries); err != nil {
			return nil, err
		}

		var dir directory
		for i := 0; i < n; i++ {
			e := entries[i*12 : i*12+12]
			tag := order.Uint16(e[0:2])
			typ := order.Uint16(e[2:4])
			count := int64(order.Uint32(e[4:8]))
			raw := e[8:12]

			switch tag {
			case tagImageWidth:
				dir.width = int(inlineValue(order, typ, raw))
			case tagImageLength:
				dir.height = int(inlineValue(order, typ, raw))
			case tagTileWidth:
				dir.tiled = true
			case tagImageDescription:
				if typ != typeASCII {
					continue
				}
				s, err := readString(r, order, count, raw, 4)
				if err != nil {
					return nil, err
				}
				dir.description = s
			}
		}
		dirs = append(dirs, dir)
		offset = int64(order.Uint32(entries[n*12:]))
	}
	return dirs, nil
}

func readBigDirectories(r io.ReadSeeker, order binary.ByteOrder, offset int64) ([]directory, error) {
	var dirs []directory
	for offset != 0 {
		if len(dirs) >= maxDirectories {
			return nil, errors.New("directory chain too long")
		}
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		var cnt [8]byte
		if _, err := io.ReadFull(r, cnt[:]); err != nil {
			return nil, err
		}
		n := int(order.Uint64(cnt[:]))
		if n < 0 || n > 4096 {
			return nil, fmt.Errorf("implausible BigTIFF entry count %d", n)
		}

		entries := make([]byte, n*20+8)
		if _, err := io.ReadFull(r, entries); err != nil {
			return nil, err
		}

		var dir directory
		for i := 0; i < n; i++ {
			e := entries[i*20 : i*20+20]
			tag := order.Uint16(e[0:2])
			typ := order.Uint16(e[2:4])
			count := int64(order.Uint64(e[4:12]))
			raw := e[12:20]

			switch tag {
			case tagImageWidth:
				dir.width = int(inlineValue(order, typ, raw))
			case tagImageLength:
				dir.height = int(inlineValue(order, typ, raw))
			case tagTileWidth:
				dir.tiled = true
			case tagImageDescription:
				if typ != typeASCII {
					continue
				}
				s, err := readString(r, order, count, raw, 8)
				if err != nil {
					return nil, err
				}
				dir.description = s
			}
		}
		dirs = append(dirs, dir)
		offset = int64(order.Uint64(entries[n*20:]))
	}
	return dirs, nil
}

// inlineValue decodes a single SHORT/LONG/LONG8 value stored in the entry's
// value field.
func inlineValue(order binary.ByteOrder, typ uint16, raw []byte) uint64 {
	switch typ {
	case typeShort:
		return uint64(order.Uint16(raw[0:2]))
	case typeLong:
		return uint64(order.Uint32(raw[0:4]))
	case typeLong8:
		if len(raw) >= 8 {
			return order.Uint64(raw[0:8])
		}
	}
	return 0
}

// readString resolves an ASCII field, inline when it fits into the value
// field and via its offset otherwise. The saved position is restored so the
// directory walk can continue.
func readString(r io.ReadSeeker, order binary.ByteOrder, count int64, raw []byte, inlineSize int64) (string, error) {
	if count <= 0 {
		return "", nil
	}
	if count <= inlineSize {
		return trimNUL(raw[:count]), nil
	}
	if count > 1<<20 {
		return "", fmt.Errorf("implausible description length %d", count)
	}

	var off int64
	if inlineSize == 4 {
		off = int64(order.Uint32(raw[0:4]))
	} else {
		off = int64(order.Uint64(raw[0:8]))
	}
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", err
	}
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return "", err
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return "", err
	}
	return trimNUL(buf), nil
}

func trimNUL(b []byte) string {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}
