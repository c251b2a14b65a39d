// Package codepage maps the CLI tools' -c <codepage> flag to
// golang.org/x/text encodings, for transcoding any legacy
// (non-Unicode) LPSTR property values into UTF-8.
package codepage

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"github.com/cfbfile/olecf/cfberr"
)

// Name is one of the codepage identifiers accepted by -c.
type Name string

const (
	ASCII              Name = "ascii"
	Windows874         Name = "windows-874"
	Windows932         Name = "windows-932"
	Windows936         Name = "windows-936"
	Windows949         Name = "windows-949"
	Windows950         Name = "windows-950"
	Windows1250        Name = "windows-1250"
	Windows1251        Name = "windows-1251"
	Windows1252        Name = "windows-1252"
	Windows1253        Name = "windows-1253"
	Windows1254        Name = "windows-1254"
	Windows1255        Name = "windows-1255"
	Windows1256        Name = "windows-1256"
	Windows1257        Name = "windows-1257"
	Windows1258        Name = "windows-1258"
)

var table = map[Name]encoding.Encoding{
	Windows874:  charmap.Windows874,
	Windows932:  japanese.ShiftJIS,
	Windows936:  simplifiedchinese.GBK,
	Windows949:  korean.EUCKR,
	Windows950:  traditionalchinese.Big5,
	Windows1250: charmap.Windows1250,
	Windows1251: charmap.Windows1251,
	Windows1252: charmap.Windows1252,
	Windows1253: charmap.Windows1253,
	Windows1254: charmap.Windows1254,
	Windows1255: charmap.Windows1255,
	Windows1256: charmap.Windows1256,
	Windows1257: charmap.Windows1257,
	Windows1258: charmap.Windows1258,
}

// Decode transcodes b, interpreted in the named codepage, to a UTF-8
// string. ASCII (or an empty name) passes the bytes through unchanged,
// including any bytes with the high bit set.
func Decode(name Name, b []byte) (string, error) {
	if name == ASCII || name == "" {
		return string(b), nil
	}
	enc, ok := table[name]
	if !ok {
		return "", cfberr.Newf(cfberr.Arguments, cfberr.ValueMismatch, "unsupported codepage %q", name)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", cfberr.Wrapf(cfberr.Conversion, cfberr.GetFailed, err, "decode codepage %q", name)
	}
	return string(out), nil
}

// Valid reports whether name is one of the recognized codepage
// identifiers.
func Valid(name Name) bool {
	if name == ASCII {
		return true
	}
	_, ok := table[name]
	return ok
}
