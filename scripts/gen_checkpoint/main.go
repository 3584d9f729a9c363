// Command gen_checkpoint writes a small model-wrapped training checkpoint for
// trying out convert and verify by hand.
package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pgermishuys/netchat/internal/checkpoint"
	"github.com/pgermishuys/netchat/internal/tensor"
)

func main() {
	var (
		out    string
		layers int
		dim    int
		vocab  int
		flat   bool
	)

	cmd := &cli.Command{
		Name:  "gen_checkpoint",
		Usage: "Write a sample training checkpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "sample.ckpt", Destination: &out},
			&cli.IntFlag{Name: "layers", Value: 2, Destination: &layers},
			&cli.IntFlag{Name: "dim", Value: 8, Destination: &dim},
			&cli.IntFlag{Name: "vocab", Value: 32, Destination: &vocab},
			&cli.BoolFlag{Name: "flat", Usage: "write a bare parameter mapping instead of a wrapped one", Destination: &flat},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			params, err := sampleParams(layers, dim, vocab)
			if err != nil {
				return err
			}
			var root checkpoint.Value = params
			if !flat {
				wrapped := checkpoint.NewMapping()
				wrapped.Set("model", params)
				wrapped.Set("optimizer", checkpoint.NewMapping())
				wrapped.Set("step", int64(1000))
				wrapped.Set("config", map[string]any{"n_layer": layers, "d_model": dim, "vocab_size": vocab})
				root = wrapped
			}
			if err := checkpoint.SaveValue(out, root); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d parameters)\n", out, params.Len())
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sampleParams(layers, dim, vocab int) (*checkpoint.Mapping, error) {
	m := checkpoint.NewMapping()
	n := 0
	add := func(name string, shape ...int64) error {
		size := int64(1)
		for _, d := range shape {
			size *= d
		}
		vals := make([]float32, size)
		for i := range vals {
			vals[i] = float32(math.Sin(float64(n + i)))
		}
		n++
		t, err := tensor.FromFloat32s(shape, vals)
		if err != nil {
			return err
		}
		m.Set(name, t)
		return nil
	}

	d, v := int64(dim), int64(vocab)
	if err := add("wte.weight", v, d); err != nil {
		return nil, err
	}
	for i := 0; i < layers; i++ {
		p := fmt.Sprintf("blocks.%d.", i)
		for _, name := range []string{"attn.q_proj", "attn.k_proj", "attn.v_proj", "attn.out_proj"} {
			if err := add(p+name+".weight", d, d); err != nil {
				return nil, err
			}
		}
		for _, name := range []string{"norm1", "norm2"} {
			if err := add(p+name+".weight", d); err != nil {
				return nil, err
			}
		}
		if err := add(p+"mlp.fc1.weight", 4*d, d); err != nil {
			return nil, err
		}
		if err := add(p+"mlp.fc2.weight", d, 4*d); err != nil {
			return nil, err
		}
	}
	if err := add("final_norm.weight", d); err != nil {
		return nil, err
	}
	if err := add("lm_head.weight", v, d); err != nil {
		return nil, err
	}
	return m, nil
}
