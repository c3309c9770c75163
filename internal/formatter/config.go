// Package formatter renders a frame.Frame plus an external counter as the
// deterministic, configurable text line a monitor tool prints per message.
// It is purely functional: the only state carried between calls is the
// zero/relative timestamp reference, owned by the Formatter value itself
// rather than a package-level singleton.
package formatter

// NumberBase selects the radix used to print identifiers, DLC and data.
type NumberBase int

const (
	BaseHex NumberBase = iota
	BaseDec
	BaseOct
)

// TimestampMode selects how a frame's timestamp is related to the
// reference point before rendering.
type TimestampMode int

const (
	// TimestampZero subtracts the very first timestamp ever observed and
	// keeps that reference fixed for the life of the Formatter.
	TimestampZero TimestampMode = iota
	// TimestampRelative subtracts the previous frame's timestamp and then
	// advances the reference to the current one.
	TimestampRelative
	// TimestampAbsolute passes the timestamp through unmodified.
	TimestampAbsolute
)

// TimeFormat selects the clock notation used to render a timestamp.
type TimeFormat int

const (
	TimeSeconds TimeFormat = iota
	TimeHHMMSS
	TimeFractionalDays
)

// Brackets selects how a DLC value is delimited.
type Brackets int

const (
	BracketsNone Brackets = iota
	BracketsParen
	BracketsSquare
)

// Separator selects the field separator character.
type Separator int

const (
	SeparatorSpaces Separator = iota
	SeparatorTabs
)

// Wraparound selects how many data bytes are printed per line before a
// continuation line is started, indented to align under the first byte.
type Wraparound int

const (
	WraparoundNone Wraparound = iota
	Wraparound8
	Wraparound10
	Wraparound16
	Wraparound32
	Wraparound64
)

func (w Wraparound) width() int {
	switch w {
	case Wraparound8:
		return 8
	case Wraparound10:
		return 10
	case Wraparound16:
		return 16
	case Wraparound32:
		return 32
	case Wraparound64:
		return 64
	default:
		return 8 // Classical CAN's own 8-byte payload is the natural default.
	}
}

// maxPromptLen is the hard length bound on rx_prompt/tx_prompt.
const maxPromptLen = 6

// Config holds every recognized formatter option. The zero value is not a
// valid Config; use DefaultConfig. Config is process-wide in the sense
// that a Formatter is normally configured once before first use — its
// setters are not required to be safe for concurrent use.
type Config struct {
	TimeStamp    TimestampMode
	TimeFormat   TimeFormat
	TimeUsec     bool
	IDBase       NumberBase
	IDXtd        bool
	DLCBase      NumberBase
	DLCBrackets  Brackets
	Flags        bool
	DataBase     NumberBase
	ASCII        bool
	ASCIISubst   byte
	Channel      bool
	Counter      bool
	Separator    Separator
	Wraparound   Wraparound
	EndOfLine    bool
	RXPrompt     string
	TXPrompt     string
}

// DefaultConfig matches the original formatter's own defaults.
func DefaultConfig() Config {
	return Config{
		TimeStamp:   TimestampZero,
		TimeFormat:  TimeSeconds,
		TimeUsec:    false,
		IDBase:      BaseHex,
		IDXtd:       false,
		DLCBase:     BaseDec,
		DLCBrackets: BracketsNone,
		Flags:       true,
		DataBase:    BaseHex,
		ASCII:       true,
		ASCIISubst:  '.',
		Channel:     false,
		Counter:     true,
		Separator:   SeparatorSpaces,
		Wraparound:  WraparoundNone,
		EndOfLine:   false,
		RXPrompt:    "",
		TXPrompt:    "",
	}
}

func validNumberBase(b NumberBase) bool {
	return b == BaseHex || b == BaseDec || b == BaseOct
}

func isPrintableASCII(b byte) bool {
	return b >= 0x20 && b < 0x7F
}

// SetTimeStamp sets the timestamp relation mode; rejects unrecognized
// values and leaves cfg unchanged.
func (c *Config) SetTimeStamp(m TimestampMode) bool {
	if m != TimestampZero && m != TimestampRelative && m != TimestampAbsolute {
		return false
	}
	c.TimeStamp = m
	return true
}

// SetTimeFormat sets the clock notation.
func (c *Config) SetTimeFormat(f TimeFormat) bool {
	if f != TimeSeconds && f != TimeHHMMSS && f != TimeFractionalDays {
		return false
	}
	c.TimeFormat = f
	return true
}

// SetTimeUsec toggles microsecond-resolution fractional time.
func (c *Config) SetTimeUsec(on bool) bool {
	c.TimeUsec = on
	return true
}

// SetIDBase sets the identifier radix.
func (c *Config) SetIDBase(b NumberBase) bool {
	if !validNumberBase(b) {
		return false
	}
	c.IDBase = b
	return true
}

// SetIDXtd toggles the wider identifier field width (8 hex / 9 dec / 10
// oct digits) independent of any individual frame's extended-ID flag.
func (c *Config) SetIDXtd(on bool) bool {
	c.IDXtd = on
	return true
}

// SetDLCBase sets the DLC radix.
func (c *Config) SetDLCBase(b NumberBase) bool {
	if !validNumberBase(b) {
		return false
	}
	c.DLCBase = b
	return true
}

// SetDLCBrackets sets the DLC delimiter style.
func (c *Config) SetDLCBrackets(b Brackets) bool {
	if b != BracketsNone && b != BracketsParen && b != BracketsSquare {
		return false
	}
	c.DLCBrackets = b
	return true
}

// SetFlags toggles the S/X/R flag-letter column.
func (c *Config) SetFlags(on bool) bool {
	c.Flags = on
	return true
}

// SetDataBase sets the data-byte radix.
func (c *Config) SetDataBase(b NumberBase) bool {
	if !validNumberBase(b) {
		return false
	}
	c.DataBase = b
	return true
}

// SetASCII toggles the trailing printable-ASCII rendering of the payload.
func (c *Config) SetASCII(on bool) bool {
	c.ASCII = on
	return true
}

// SetASCIISubst sets the substitute byte printed for non-printable data;
// rejects non-printable substitutes themselves.
func (c *Config) SetASCIISubst(b byte) bool {
	if !isPrintableASCII(b) {
		return false
	}
	c.ASCIISubst = b
	return true
}

// SetChannel toggles the channel-number column.
func (c *Config) SetChannel(on bool) bool {
	c.Channel = on
	return true
}

// SetCounter toggles the leading message-counter column.
func (c *Config) SetCounter(on bool) bool {
	c.Counter = on
	return true
}

// SetSeparator sets the field separator character.
func (c *Config) SetSeparator(s Separator) bool {
	if s != SeparatorSpaces && s != SeparatorTabs {
		return false
	}
	c.Separator = s
	return true
}

// SetWraparound sets the data-byte wraparound width.
func (c *Config) SetWraparound(w Wraparound) bool {
	switch w {
	case WraparoundNone, Wraparound8, Wraparound10, Wraparound16, Wraparound32, Wraparound64:
		c.Wraparound = w
		return true
	default:
		return false
	}
}

// SetEndOfLine toggles the trailing newline.
func (c *Config) SetEndOfLine(on bool) bool {
	c.EndOfLine = on
	return true
}

// SetRXPrompt sets the prompt prefixed to received-message lines; rejects
// strings longer than 6 bytes.
func (c *Config) SetRXPrompt(s string) bool {
	if len(s) > maxPromptLen {
		return false
	}
	c.RXPrompt = s
	return true
}

// SetTXPrompt sets the prompt prefixed to sent-message lines; rejects
// strings longer than 6 bytes.
func (c *Config) SetTXPrompt(s string) bool {
	if len(s) > maxPromptLen {
		return false
	}
	c.TXPrompt = s
	return true
}
