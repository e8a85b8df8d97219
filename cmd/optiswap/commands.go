package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/optiswap/optiswap/accumulator"
	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
)

var errMismatch = errors.New("verification failed")

// readHexLines reads one hex value per non-empty line; '#' starts a comment.
func readHexLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		b, err := types.FromHex(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		out = append(out, b)
	}
	return out, sc.Err()
}

func parseIndex(s string) (uint64, error) {
	i, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return i, nil
}

func cmdEval(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval CIRCUIT",
		Short: "Evaluate a circuit file and print its trace",
		Long: `Evaluate a circuit given as one hex-encoded 64-byte gate record per line
and print the value of every gate, one per line.

Example:
  $ optiswap eval --key 000102030405060708090a0b0c0d0e0f circuit.hex`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyHex, err := cmd.Flags().GetString("key")
			if err != nil {
				return err
			}
			key, err := types.FromHex(keyHex)
			if err != nil {
				return fmt.Errorf("invalid key: %w", err)
			}
			lines, err := readHexLines(args[0])
			if err != nil {
				return err
			}
			recs := make([]circuit.Record, len(lines))
			for i, b := range lines {
				if recs[i], err = circuit.RecordFromBytes(b); err != nil {
					return fmt.Errorf("gate %d: %w", i, err)
				}
			}
			ev := &circuit.Evaluator{Version: a.cfg.CircuitVersion, Key: key}
			trace, err := ev.EvaluateTrace(recs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range trace {
				fmt.Fprintf(out, "0x%x\n", v)
			}
			a.log.Debug("circuit evaluated", "gates", len(trace))
			return nil
		},
	}
	cmd.Flags().String("key", "", "hex-encoded AES-128 key released for the circuit")
	return cmd
}

func cmdAccumulate() *cobra.Command {
	return &cobra.Command{
		Use:   "accumulate VALUES",
		Short: "Print the accumulator root of a value file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := readHexLines(args[0])
			if err != nil {
				return err
			}
			root, err := accumulator.Commit(values)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root.Hex())
			return nil
		},
	}
}

func cmdProve() *cobra.Command {
	return &cobra.Command{
		Use:   "prove VALUES INDEX",
		Short: "Print the membership proof of one value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := readHexLines(args[0])
			if err != nil {
				return err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			tree, err := accumulator.Build(values)
			if err != nil {
				return err
			}
			proof, err := tree.Prove(index)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, h := range proof {
				fmt.Fprintln(out, h.Hex())
			}
			return nil
		},
	}
}

func cmdVerify() *cobra.Command {
	return &cobra.Command{
		Use:   "verify ROOT INDEX VALUE [SIBLING...]",
		Short: "Check a membership proof against a root",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := types.HexToHash(args[0])
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			value, err := types.FromHex(args[2])
			if err != nil {
				return fmt.Errorf("invalid value: %w", err)
			}
			proof := make(accumulator.Proof, 0, len(args)-3)
			for _, s := range args[3:] {
				proof = append(proof, types.HexToHash(s))
			}
			if err := accumulator.VerifyProof(root, index, value, proof); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func cmdCommit() *cobra.Command {
	return &cobra.Command{
		Use:   "commit VALUE SALT",
		Short: "Print the commitment to a value and salt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, salt, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), crypto.Commit(value, salt).Hex())
			return nil
		},
	}
}

func cmdOpen() *cobra.Command {
	return &cobra.Command{
		Use:   "open COMMITMENT VALUE SALT",
		Short: "Check a commitment opening",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, salt, err := parsePair(args[1], args[2])
			if err != nil {
				return err
			}
			if !crypto.Open(types.HexToHash(args[0]), value, salt) {
				return errMismatch
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func parsePair(valueHex, saltHex string) ([]byte, []byte, error) {
	value, err := types.FromHex(valueHex)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid value: %w", err)
	}
	salt, err := types.FromHex(saltHex)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid salt: %w", err)
	}
	return value, salt, nil
}
