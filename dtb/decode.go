package dtb

import (
	"bytes"
	"os"
	"os/exec"
)

const DefaultDtcPath = "dtc"

// Decoder turns a raw device tree blob into its source-level text form.
// Implementations report failure with ok=false instead of an error: a blob
// the decoder can't read is an expected per-blob outcome and must never
// abort a batch.
type Decoder interface {
	Decode(blob []byte) (text string, ok bool)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func([]byte) (string, bool)

func (f DecoderFunc) Decode(blob []byte) (string, bool) {
	return f(blob)
}

// DtcDecoder decompiles blobs with the external device tree compiler.
type DtcDecoder struct {
	Path string // dtc executable to run, defaults to "dtc" from PATH
}

// Write the blob to a temp file, run dtc over it and capture the dts text
// from stdout. A launch failure or nonzero exit means "not decodable"; the
// text itself is never inspected here.
func (d *DtcDecoder) Decode(blob []byte) (string, bool) {
	path := d.Path
	if path == "" {
		path = DefaultDtcPath
	}
	tmp, err := os.CreateTemp("", "dtbchunk_*.dtb")
	if err != nil {
		return "", false
	}
	defer os.Remove(tmp.Name())
	_, err = tmp.Write(blob)
	tmp.Close()
	if err != nil {
		return "", false
	}
	var stdout bytes.Buffer
	cmd := exec.Command(path, "-I", "dtb", "-O", "dts", tmp.Name())
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", false
	}
	return stdout.String(), true
}
