package ffprobe

import (
	"encoding/binary"
	"io"
	"os"
)

// maxContainerScanBytes bounds how much of a file DetectFastSeek reads
// looking for index boxes, so a multi-gigabyte source with everything
// packed at the front doesn't force a full read to find a negative.
const maxContainerScanBytes = 64 * 1024 * 1024

// matroskaCuesID and matroskaClusterID are the EBML element IDs for the
// Cues and Cluster elements in a Matroska/WebM file.
var (
	matroskaCuesID    = []byte{0x1C, 0x53, 0xBB, 0x6B}
	matroskaClusterID = []byte{0x1F, 0x43, 0xB6, 0x75}
	matroskaEBMLMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
)

// DetectFastSeek reports whether a container is laid out for fast
// seeking: the MP4 moov atom appears before mdat, or the Matroska Cues
// element appears before the first Cluster. A container that fails this
// check still decodes fine, but seeking requires scanning forward from
// the start, which the Scene Encoder's temporal pre-cut (C5) needs to
// know in advance to place its seek.
func DetectFastSeek(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	isEBML, err := looksLikeEBML(f)
	if err != nil {
		return false, err
	}
	if isEBML {
		return scanMatroskaFastSeek(f)
	}

	return scanMP4FastSeek(f)
}

func looksLikeEBML(f *os.File) (bool, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return false, err
	}
	for i, b := range matroskaEBMLMagic {
		if magic[i] != b {
			return false, nil
		}
	}
	return true, nil
}

// scanMP4FastSeek walks top-level ISO-BMFF boxes (four-byte size, four-byte
// type) until it sees "moov" or "mdat", reporting whether moov came first.
func scanMP4FastSeek(f *os.File) (bool, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}

	var offset int64
	header := make([]byte, 8)

	for offset < maxContainerScanBytes {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return false, nil
		}
		n, err := io.ReadFull(f, header)
		if n < 8 {
			if err != nil {
				return false, nil
			}
			return false, nil
		}

		size := int64(binary.BigEndian.Uint32(header[0:4]))
		boxType := string(header[4:8])

		switch boxType {
		case "moov":
			return true, nil
		case "mdat":
			return false, nil
		}

		if size < 8 {
			// size==1 means a 64-bit extended size follows; size==0 means
			// "rest of file". Neither is expected before moov/mdat in a
			// well-formed file, so stop scanning rather than loop forever.
			return false, nil
		}
		offset += size
	}

	return false, nil
}

// scanMatroskaFastSeek searches the first maxContainerScanBytes of the
// file byte-for-byte for the Cues and Cluster element IDs, reporting
// whether Cues came first. It does not parse the EBML element tree.
func scanMatroskaFastSeek(f *os.File) (bool, error) {
	data := make([]byte, maxContainerScanBytes)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	n, err := io.ReadFull(f, data)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	data = data[:n]

	cuesIdx := indexOf(data, matroskaCuesID)
	clusterIdx := indexOf(data, matroskaClusterID)

	if cuesIdx == -1 {
		return false, nil
	}
	if clusterIdx == -1 {
		return true, nil
	}
	return cuesIdx < clusterIdx, nil
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
