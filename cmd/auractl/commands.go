package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ghostauth/internal/aura"
	jwttoken "ghostauth/internal/jwt_token"
	"ghostauth/internal/profiling"
	telemetry "ghostauth/internal/telemetry/models"
	dErrors "ghostauth/pkg/domain-errors"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auractl",
		Short:         "Inspect behavioral auras offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFeaturesCmd(), newAuraCmd(), newHammingCmd(), newTokenCmd())
	return root
}

func newFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features [telemetry.json]",
		Short: "Print the feature vector of a telemetry batch",
		Long: `Reads a batch either as {"session_id": ..., "events": [...]} or as a bare
event array. Reads stdin when the file is "-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fv, err := extractFile(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), fv.Map())
		},
	}
}

type auraOutput struct {
	AuraHash string             `json:"aura_hash"`
	Features map[string]float64 `json:"features,omitempty"`
	Secret   string             `json:"secret,omitempty"`
	Cover    []int32            `json:"cover,omitempty"`
	Carrier  int                `json:"carrier_len,omitempty"`
}

func newAuraCmd() *cobra.Command {
	var (
		seed    uint64
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "aura [telemetry.json]",
		Short: "Generate the aura digest of a telemetry batch",
		Long: `Padding is random unless --seed is given; the same seed and batch always
produce the same digest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fv, err := extractFile(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			source := aura.NewLockedSource()
			if cmd.Flags().Changed("seed") {
				source = aura.NewSeededSource(seed)
			}
			res, err := aura.NewGenerator(source).GenerateDetailed(fv)
			if err != nil {
				return err
			}
			if !verbose {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Digest)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), auraOutput{
				AuraHash: res.Digest.String(),
				Features: fv.Map(),
				Secret:   hex.EncodeToString(res.Secret[:]),
				Cover:    res.Cover,
				Carrier:  len(res.Carrier),
			})
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for the padding source")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print intermediates as JSON")
	return cmd
}

func newHammingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hamming [baseline] [current]",
		Short: "Score two aura digests by bit similarity (0-100)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := aura.HammingScore(args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), score)
			return err
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		key, user, device, issuer, audience string
		ttl                                 time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token accepted by the telemetry endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = os.Getenv("JWT_SIGNING_KEY")
			}
			if key == "" {
				return fmt.Errorf("--key or JWT_SIGNING_KEY is required")
			}
			token, err := jwttoken.NewJWTService(key, issuer, audience).GenerateAccessToken(user, device, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "HMAC signing key (defaults to $JWT_SIGNING_KEY)")
	cmd.Flags().StringVar(&user, "user", "", "user id placed in the subject claim")
	cmd.Flags().StringVar(&device, "device", "", "device uuid claim")
	cmd.Flags().StringVar(&issuer, "issuer", "ghostauth", "issuer claim")
	cmd.Flags().StringVar(&audience, "audience", "ghostauth-telemetry", "audience claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// extractFile parses a telemetry file and runs feature extraction on it.
func extractFile(stdin io.Reader, path string) (profiling.FeatureVector, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return profiling.FeatureVector{}, fmt.Errorf("read telemetry: %w", err)
	}

	events, err := parseBatch(raw)
	if err != nil {
		return profiling.FeatureVector{}, err
	}
	return profiling.Extract(events)
}

func parseBatch(raw []byte) ([]telemetry.Event, error) {
	var items []json.RawMessage
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid event array")
		}
	} else {
		var batch struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid telemetry batch")
		}
		items = batch.Events
	}

	events := make([]telemetry.Event, 0, len(items))
	for i, item := range items {
		e, err := telemetry.ParseEvent(item)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("events[%d] is invalid", i))
		}
		events = append(events, e)
	}
	return events, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
