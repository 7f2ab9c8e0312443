// Package jsp (JSON persistence) saves and loads small JSON-encoded
// structures - configuration snapshots, in this engine - with a signature
// and checksum trailer so a torn write is detected on the next load
// rather than silently accepted. It is a trimmed rework of the reference
// engine's own cmn/jsp package, which the reference uses for exactly the
// same purpose (volume metadata, config snapshots).
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package jsp

import (
	"os"

	"github.com/OneOfOne/xxhash"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const signature = "web-index.jsp.v1\n"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Save writes v as JSON, preceded by a signature and followed by an
// xxhash64 checksum of the JSON body, to a temp file that is then renamed
// over filepath so readers never observe a partial write.
func Save(filepath string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "jsp: encode %s", filepath)
	}
	sum := xxhash.Checksum64(body)

	tmp := filepath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "jsp: create %s", tmp)
	}
	if _, err := f.WriteString(signature); err == nil {
		_, err = f.Write(body)
	}
	if err == nil {
		_, err = f.Write(encodeSum(sum))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "jsp: write %s", tmp)
	}
	if err := os.Rename(tmp, filepath); err != nil {
		return errors.Wrapf(err, "jsp: rename %s", tmp)
	}
	return nil
}

// Load reads filepath, validates signature and checksum, and unmarshals
// the JSON body into v.
func Load(filepath string, v interface{}) error {
	raw, err := os.ReadFile(filepath)
	if err != nil {
		return errors.Wrapf(err, "jsp: read %s", filepath)
	}
	if len(raw) < len(signature)+8 || string(raw[:len(signature)]) != signature {
		return errors.Errorf("jsp: %s: bad signature", filepath)
	}
	body := raw[len(signature) : len(raw)-8]
	wantSum := raw[len(raw)-8:]
	if gotSum := encodeSum(xxhash.Checksum64(body)); string(gotSum) != string(wantSum) {
		return errors.Errorf("jsp: %s: checksum mismatch", filepath)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "jsp: decode %s", filepath)
	}
	return nil
}

func encodeSum(sum uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (8 * i))
	}
	return b
}
