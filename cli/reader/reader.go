package reader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/lifi/capture"
	"github.com/pithecene-io/lifi/packet"
	"github.com/pithecene-io/lifi/receiver"
)

// InspectToken parses one token.
func InspectToken(token string) TokenInspection {
	out := TokenInspection{Token: token}
	p, err := packet.Parse(token)
	if err != nil {
		out.Error = err.Error()
		if kind, ok := packet.KindOf(err); ok {
			out.ErrorKind = kind.String()
		}
		return out
	}
	out.Valid = true
	out.Filename = p.Filename
	out.TotalChunks = p.TotalChunks
	out.Index = p.Index
	out.PayloadSize = len(p.Payload)
	return out
}

// InspectTokens parses each token independently, in order.
func InspectTokens(tokens []string) []TokenInspection {
	out := make([]TokenInspection, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, InspectToken(t))
	}
	return out
}

// Summarize replays src through a fresh controller until EOF.
func Summarize(ctx context.Context, src capture.Source) (*RecordingSummary, error) {
	ctrl := receiver.NewController()
	sum := &RecordingSummary{Rejected: map[string]int{}}
	others := map[string]*ForeignSession{}
	var order []string

	for {
		token, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sum.Tokens++

		res := ctrl.Handle(token)
		switch res.Outcome {
		case receiver.OutcomeDuplicate:
			sum.Duplicates++
		case receiver.OutcomeRejected:
			kind, _ := packet.KindOf(res.Err)
			sum.Rejected[kind.String()]++
		case receiver.OutcomeMismatch:
			sum.Mismatched++
			k := fmt.Sprintf("%s/%d", res.Packet.Filename, res.Packet.TotalChunks)
			fs, ok := others[k]
			if !ok {
				fs = &ForeignSession{Filename: res.Packet.Filename, TotalChunks: res.Packet.TotalChunks}
				others[k] = fs
				order = append(order, k)
			}
			fs.Packets++
		case receiver.OutcomeAlreadyPresent:
			sum.Redundant++
		}
	}

	if rs, ok := src.(*capture.RecordingSource); ok {
		sum.Skipped = rs.Skipped()
	}
	if s := ctrl.Session(); s != nil {
		sum.Session = &SessionSummary{
			Filename:    s.Filename(),
			TotalChunks: s.TotalChunks(),
			Received:    s.Received(),
			Bytes:       s.Bytes(),
			Complete:    s.IsComplete(),
			Missing:     s.Missing(),
		}
	}
	for _, k := range order {
		sum.Others = append(sum.Others, *others[k])
	}
	return sum, nil
}
