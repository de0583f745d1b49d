package packet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultChunkSize is the raw bytes carried per token by Split when no size is given.
// 256 bytes encodes to a token that fits comfortably in a version 10 QR code.
const DefaultChunkSize = 256

// ErrDelimiterInFilename is returned when a filename would break the token framing.
var ErrDelimiterInFilename = errors.New("filename contains the token delimiter")

// ErrTooManyChunks is returned when data would need more than MaxTotalChunks tokens.
var ErrTooManyChunks = errors.New("too many chunks")

// Encode renders p as a wire token. The payload uses padded standard base64.
func Encode(p *Packet) string {
	magic, version := p.Magic, p.Version
	if magic == "" {
		magic = Magic
	}
	if version == "" {
		version = Version
	}
	return strings.Join([]string{
		magic,
		version,
		p.Filename,
		strconv.Itoa(p.TotalChunks),
		strconv.Itoa(p.Index),
		base64.StdEncoding.EncodeToString(p.Payload),
	}, Delimiter)
}

// Split cuts data into chunkSize pieces and returns one packet per piece in index order.
// Empty data yields a single empty chunk so the receiver can still complete.
func Split(filename string, data []byte, chunkSize int) ([]*Packet, error) {
	if strings.Contains(filename, Delimiter) {
		return nil, fmt.Errorf("%w: %q", ErrDelimiterInFilename, filename)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	total := (len(data) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	if total > MaxTotalChunks {
		return nil, fmt.Errorf("%w: %d bytes at %d bytes per chunk needs %d chunks, limit %d",
			ErrTooManyChunks, len(data), chunkSize, total, MaxTotalChunks)
	}

	packets := make([]*Packet, 0, total)
	for i := range total {
		start := i * chunkSize
		end := min(start+chunkSize, len(data))
		packets = append(packets, &Packet{
			Magic:       Magic,
			Version:     Version,
			Filename:    filename,
			TotalChunks: total,
			Index:       i,
			Payload:     data[start:end],
		})
	}
	return packets, nil
}

// Tokens is Split followed by Encode for every packet.
func Tokens(filename string, data []byte, chunkSize int) ([]string, error) {
	packets, err := Split(filename, data, chunkSize)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, len(packets))
	for i, p := range packets {
		tokens[i] = Encode(p)
	}
	return tokens, nil
}
