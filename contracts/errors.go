package contracts

// The four user-facing failure kinds. Every run either writes its full
// output set or fails with one of these; there is no partial-output mode.

// InputError reports a missing or unreadable XML or slide file, or a slide
// path without the .svs extension.
type InputError struct {
	Msg string
}

func NewInputError(msg string) *InputError { return &InputError{Msg: msg} }

func (e *InputError) Error() string { return "input error: " + e.Msg }

// ParseError reports an XML file with no recognizable annotation geometry.
type ParseError struct {
	Msg string
	Err error
}

func NewParseError(msg string, err error) *ParseError {
	return &ParseError{Msg: msg, Err: err}
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Msg + ": " + e.Err.Error()
	}
	return "parse error: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid or insufficient option combination.
type ConfigurationError struct {
	Msg string
}

func NewConfigurationError(msg string) *ConfigurationError {
	return &ConfigurationError{Msg: msg}
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// GeometryError reports a tile window with no overlap with the output frame.
type GeometryError struct {
	Msg string
}

func NewGeometryError(msg string) *GeometryError { return &GeometryError{Msg: msg} }

func (e *GeometryError) Error() string { return "geometry error: " + e.Msg }
