package codec

import "github.com/Thema-AI/web-index/schema"

// WriteDataFile produces the bytes a Backend stores for a data-stream
// partition file: parquet-encode, lz4-compress, then seal with a
// checksum trailer.
func WriteDataFile(rows []schema.DataRow) ([]byte, error) {
	encoded, err := EncodeDataRows(rows)
	if err != nil {
		return nil, err
	}
	compressed, err := Compress(encoded)
	if err != nil {
		return nil, err
	}
	return Seal(compressed)
}

// ReadDataFile reverses WriteDataFile and applies pred with row-group
// push-down.
func ReadDataFile(sealed []byte, pred DataPredicate) ([]schema.DataRow, error) {
	compressed, err := Unseal(sealed)
	if err != nil {
		return nil, err
	}
	encoded, err := Decompress(compressed)
	if err != nil {
		return nil, err
	}
	return DecodeDataRows(encoded, pred)
}

// WriteMetadataFile mirrors WriteDataFile for the metadata streams.
func WriteMetadataFile(rows []schema.MetadataRow) ([]byte, error) {
	encoded, err := EncodeMetadataRows(rows)
	if err != nil {
		return nil, err
	}
	compressed, err := Compress(encoded)
	if err != nil {
		return nil, err
	}
	return Seal(compressed)
}

// ReadMetadataFile reverses WriteMetadataFile.
func ReadMetadataFile(sealed []byte, pred MetadataPredicate) ([]schema.MetadataRow, error) {
	compressed, err := Unseal(sealed)
	if err != nil {
		return nil, err
	}
	encoded, err := Decompress(compressed)
	if err != nil {
		return nil, err
	}
	return DecodeMetadataRows(encoded, pred)
}
