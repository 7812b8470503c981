package print

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrHTMLNotSupported means a byte-oriented transport received an html
// payload; only the bridge agent and the OS dialog can render html.
var ErrHTMLNotSupported = errors.New("html payload not supported by this transport")

// codepages maps config names to the charmaps thermal printers speak.
var codepages = map[string]*charmap.Charmap{
	"":       charmap.CodePage437,
	"cp437":  charmap.CodePage437,
	"cp850":  charmap.CodePage850,
	"cp866":  charmap.CodePage866,
	"cp1251": charmap.Windows1251,
	"cp1252": charmap.Windows1252,
}

// encodeForWire converts a raw or command payload to printer bytes in the
// configured codepage. HTML payloads are refused.
func encodeForWire(job *Job, codepage string) ([]byte, error) {
	if job.Format == FormatHTML {
		return nil, ErrHTMLNotSupported
	}

	cm, ok := codepages[codepage]
	if !ok {
		return nil, fmt.Errorf("unknown codepage %q", codepage)
	}

	// Unmappable runes degrade to the replacement byte instead of failing
	// the whole job.
	enc := encoding.ReplaceUnsupported(cm.NewEncoder())
	out, _, err := transform.Bytes(enc, []byte(job.Payload))
	if err != nil {
		return nil, fmt.Errorf("encode payload to %s: %w", cm.String(), err)
	}
	return out, nil
}
