package cid

import (
	"encoding/binary"

	gocid "github.com/ipfs/go-cid"

	"github.com/dwn-project/dwn-core/errs"
)

// chunkSize is the fixed leaf-chunk size used when addressing encoded
// record data, matching the default unixfs chunker size.
const chunkSize = 256 * 1024

// ComputeDagCIDFromBytes computes the content address of a raw data blob
// (e.g. a Records.Write's `encodedData`) the way an inbound message's
// `dataCid` is expected to be computed: split into fixed-size chunks,
// each chunk addressed as a raw leaf, chunks linked from a single
// dag-pb root node addressed in turn by its own canonical encoding.
// Blobs that fit in a single chunk are addressed directly as a raw leaf
// with no wrapping node, matching the small-file optimization unixfs
// importers apply.
func ComputeDagCIDFromBytes(data []byte) (string, error) {
	if len(data) <= chunkSize {
		return cidFromBytes(data, CodecRaw)
	}

	var links []pbLink

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}

		chunk := data[offset:end]

		leafCID, err := cidFromBytes(chunk, CodecRaw)
		if err != nil {
			return "", err
		}

		c, err := gocid.Decode(leafCID)
		if err != nil {
			return "", errs.Wrap(errs.CodeCidParseError, "failed to re-decode leaf cid", err)
		}

		links = append(links, pbLink{hash: c.Bytes(), tsize: uint64(len(chunk))})
	}

	node := encodePBNode(links, nil)

	return cidFromBytes(node, CodecDagPb)
}

// pbLink mirrors the dag-pb PBLink message: {Hash bytes, Name string,
// Tsize uint64}. Name is always empty for the balanced layout this
// module produces.
type pbLink struct {
	hash  []byte
	tsize uint64
}

// encodePBNode serializes a dag-pb PBNode {repeated PBLink Links = 2;
// optional bytes Data = 1;} using the standard protobuf wire format.
// dag-pb is a stable, documented IPLD codec; this is a minimal encoder
// sufficient for the balanced file layout this module needs, not a
// general-purpose protobuf implementation.
func encodePBNode(links []pbLink, data []byte) []byte {
	var buf []byte

	for _, l := range links {
		linkBytes := encodePBLink(l)
		buf = appendTag(buf, 2, 2) // field 2, wire type 2 (length-delimited)
		buf = appendVarint(buf, uint64(len(linkBytes)))
		buf = append(buf, linkBytes...)
	}

	if len(data) > 0 {
		buf = appendTag(buf, 1, 2)
		buf = appendVarint(buf, uint64(len(data)))
		buf = append(buf, data...)
	}

	return buf
}

func encodePBLink(l pbLink) []byte {
	var buf []byte

	buf = appendTag(buf, 1, 2)
	buf = appendVarint(buf, uint64(len(l.hash)))
	buf = append(buf, l.hash...)

	buf = appendTag(buf, 3, 0) // field 3, varint
	buf = appendVarint(buf, l.tsize)

	return buf
}

func appendTag(buf []byte, field int, wireType int) []byte {
	return appendVarint(buf, uint64(field)<<3|uint64(wireType))
}

func appendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], v)

	return append(buf, tmp[:n]...)
}
