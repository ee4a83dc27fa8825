// Package cid implements the C1 CID service: a canonical, deterministic
// content identifier over CBOR-encoded structures, used everywhere this
// module needs to name a descriptor, a message, or a chunk of record
// data by its content.
package cid

import (
	"github.com/fxamacker/cbor/v2"
	gocid "github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"

	"github.com/dwn-project/dwn-core/errs"
)

// Codec constants used for CIDs this package mints or accepts.
const (
	CodecDagCbor = uint64(mc.DagCbor)
	CodecDagPb   = uint64(mc.DagPb)
	CodecRaw     = uint64(mc.Raw)
)

var encMode = mustEncMode()

// mustEncMode builds the core-deterministic CBOR encoder: sorted map
// keys, no indefinite-length containers, so that two structurally equal
// values always serialize to the same bytes regardless of how their Go
// representation was constructed (map iteration order, struct field
// order, etc). Mirrors the deterministic encoder setup used across the
// retrieval pack's CBOR codec (core-deterministic sort, no streaming).
func mustEncMode() cbor.EncMode {
	opts := cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}

	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}

	return mode
}

// MarshalCanonical encodes value into the deterministic CBOR byte string
// used as the pre-image for ComputeCID. `undefined`/nil map entries are
// omitted by construction: callers should not place nil-valued optional
// fields into the structures passed here; use omitempty-style helpers
// upstream (see message.Descriptor.ToMap).
func MarshalCanonical(value any) ([]byte, error) {
	b, err := encMode.Marshal(value)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCidParseError, "failed to canonically encode value", err)
	}

	return b, nil
}

// ComputeCID returns the CIDv1 (dag-cbor, sha2-256) of value's canonical
// CBOR encoding. Pure and deterministic: equal values always yield the
// same CID regardless of platform or Go map iteration order.
func ComputeCID(value any) (string, error) {
	b, err := MarshalCanonical(value)
	if err != nil {
		return "", err
	}

	return cidFromBytes(b, CodecDagCbor)
}

func cidFromBytes(b []byte, codec uint64) (string, error) {
	sum, err := mh.Sum(b, mh.SHA2_256, -1)
	if err != nil {
		return "", errs.Wrap(errs.CodeCidParseError, "failed to hash canonical bytes", err)
	}

	return gocid.NewCidV1(codec, sum).String(), nil
}

// ParseCID decodes and validates a CID string, rejecting any codec or
// multihash other than the ones this module produces.
func ParseCID(s string) (gocid.Cid, error) {
	c, err := gocid.Decode(s)
	if err != nil {
		return gocid.Undef, errs.Wrap(errs.CodeCidParseError, "malformed cid", err)
	}

	prefix := c.Prefix()

	switch prefix.Codec {
	case CodecDagCbor, CodecDagPb, CodecRaw:
	default:
		return gocid.Undef, errs.Newf(errs.CodeCidCodecNotSupported, "unsupported cid codec %d", prefix.Codec)
	}

	if prefix.MhType != mh.SHA2_256 {
		return gocid.Undef, errs.Newf(errs.CodeCidMultihashNotSupported, "unsupported multihash type %d", prefix.MhType)
	}

	return c, nil
}

// IsValid reports whether s parses as a CID this module accepts.
func IsValid(s string) bool {
	_, err := ParseCID(s)

	return err == nil
}

// Equal reports whether two CID strings denote the same CID, comparing
// by parsed identity rather than byte-for-byte string equality (a CID
// may have more than one valid base encoding).
func Equal(a, b string) bool {
	ca, err := ParseCID(a)
	if err != nil {
		return false
	}

	cb, err := ParseCID(b)
	if err != nil {
		return false
	}

	return ca.Equals(cb)
}
