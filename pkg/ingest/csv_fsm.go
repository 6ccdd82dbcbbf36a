package ingest

// csvState is the state of the field scanner.
type csvState uint8

const (
	stateFieldStart csvState = iota
	stateInField
	stateInQuotedField
	stateQuoteInQuotedField
)

// CSVScanner splits one logical CSV record into fields using a finite
// state machine. Quoted fields may hold delimiters, doubled quotes and
// newlines.
type CSVScanner struct {
	delimiter byte
	state     csvState
}

// NewCSVScanner creates a scanner for the given delimiter.
func NewCSVScanner(delimiter byte) *CSVScanner {
	return &CSVScanner{delimiter: delimiter}
}

// ScanRecord parses record (without its trailing newline) into fields.
// A trailing carriage return is dropped. An empty record yields nil.
func (s *CSVScanner) ScanRecord(record []byte) []string {
	if n := len(record); n > 0 && record[n-1] == '\r' {
		record = record[:n-1]
	}
	if len(record) == 0 {
		return nil
	}

	fields := make([]string, 0, 8)
	s.state = stateFieldStart

	var (
		fieldStart int
		fieldEnd   int
		unescape   bool
	)

	for i := 0; i <= len(record); i++ {
		end := i == len(record)
		var c byte
		if !end {
			c = record[i]
		}

		switch s.state {
		case stateFieldStart:
			switch {
			case end:
				fields = append(fields, "")
			case c == '"':
				fieldStart = i + 1
				s.state = stateInQuotedField
			case c == s.delimiter:
				fields = append(fields, "")
			default:
				fieldStart = i
				s.state = stateInField
			}

		case stateInField:
			if end || c == s.delimiter {
				fields = append(fields, string(record[fieldStart:i]))
				s.state = stateFieldStart
			}

		case stateInQuotedField:
			if end {
				// Unterminated quote: take what we have
				fields = append(fields, string(record[fieldStart:i]))
				continue
			}
			if c == '"' {
				fieldEnd = i
				s.state = stateQuoteInQuotedField
			}

		case stateQuoteInQuotedField:
			switch {
			case end || c == s.delimiter:
				field := record[fieldStart:fieldEnd]
				if unescape {
					fields = append(fields, unescapeQuotes(field))
					unescape = false
				} else {
					fields = append(fields, string(field))
				}
				s.state = stateFieldStart
			case c == '"':
				unescape = true
				s.state = stateInQuotedField
			default:
				// Stray character after a closing quote; keep scanning leniently
				s.state = stateInQuotedField
			}
		}
	}

	return fields
}

// openQuote reports whether record ends inside a quoted field, meaning
// the next physical line continues it.
func openQuote(record []byte) bool {
	quotes := 0
	for _, c := range record {
		if c == '"' {
			quotes++
		}
	}
	return quotes%2 == 1
}

// unescapeQuotes replaces "" with " in a quoted field.
func unescapeQuotes(field []byte) string {
	buf := make([]byte, 0, len(field))
	for i := 0; i < len(field); i++ {
		if field[i] == '"' && i+1 < len(field) && field[i+1] == '"' {
			i++
		}
		buf = append(buf, field[i])
	}
	return string(buf)
}
