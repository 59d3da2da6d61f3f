// ===== Batch decoding =====

package decoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/forester-mt/forester/core/lineio"
	"github.com/forester-mt/forester/core/segment"
)

// DecodeAll decodes sentences concurrently, keeping input order in the
// result. The first failure cancels the remaining work.
func (d *Decoder) DecodeAll(ctx context.Context, sents []*segment.Sentence) ([]*Translation, error) {
	out := make([]*Translation, len(sents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, s := range sents {
		g.Go(func() error {
			t, err := d.Decode(gctx, s)
			if err != nil {
				return fmt.Errorf("segment %d: %w", s.ID, err)
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeStream reads one sentence per line from r, decodes the batch,
// and writes n-best lines to w in input order. The whole input is read
// before decoding begins. name labels the input in errors.
func (d *Decoder) DecodeStream(ctx context.Context, name string, r io.Reader, w io.Writer) error {
	in := lineio.NewReader(name, r)
	var sents []*segment.Sentence
	for in.Scan() {
		sents = append(sents, segment.New(len(sents), strings.TrimSpace(in.Text())))
	}
	if err := in.Err(); err != nil {
		return err
	}

	ts, err := d.DecodeAll(ctx, sents)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for i, t := range ts {
		for _, line := range t.Lines(i, d.cfg.Output.Trees) {
			fmt.Fprintln(bw, line)
		}
	}
	return bw.Flush()
}
