package transcode

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jonas747/ogg"
)

var opusHead = []byte("OpusHead")

// ValidateOpusContainer checks that the file is an ogg stream whose
// first packet is an Opus identification header.
func ValidateOpusContainer(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(f))
	packet, _, err := decoder.Decode()
	if err != nil {
		return fmt.Errorf("not an ogg container: %w", err)
	}
	if !bytes.HasPrefix(packet, opusHead) {
		return fmt.Errorf("first ogg packet is not an OpusHead")
	}
	return nil
}
