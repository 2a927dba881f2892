package main

import (
	"encoding/hex"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/cory-johannsen/draconic/internal/signature"
)

var signFlags struct {
	message    uint64
	channel    uint64
	author     uint64
	scope      string
	payload    int
	collection string
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a capability token with the configured secret",
	Long: `Sign a capability token with signing.secret.

  Example: draconic sign --message 1234567890123456789 --channel 1 --author 2 --scope PERSONAL_ALIAS`,
	Args: cobra.NoArgs,
	RunE: runSign,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Verify a capability token and print its claims as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	f := signCmd.Flags()
	f.Uint64Var(&signFlags.message, "message", 0, "message id (a snowflake; its timestamp is embedded)")
	f.Uint64Var(&signFlags.channel, "channel", 0, "channel id")
	f.Uint64Var(&signFlags.author, "author", 0, "author id")
	f.StringVar(&signFlags.scope, "scope", "COMMAND_TEST", "execution scope name")
	f.IntVar(&signFlags.payload, "payload", 0, "user data")
	f.StringVar(&signFlags.collection, "collection", "", "24 hex digit collection id")
	_ = signCmd.MarkFlagRequired("message")
}

func codecFromConfig() (*signature.Codec, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return signature.NewCodec([]byte(cfg.Signing.Secret))
}

func runSign(cmd *cobra.Command, _ []string) error {
	codec, err := codecFromConfig()
	if err != nil {
		return err
	}
	scope, err := signature.ParseScope(signFlags.scope)
	if err != nil {
		return err
	}
	claims := signature.Claims{
		MessageID: signFlags.message,
		ChannelID: signFlags.channel,
		AuthorID:  signFlags.author,
		Scope:     scope,
		Payload:   signFlags.payload,
	}
	if signFlags.collection != "" {
		raw, err := hex.DecodeString(signFlags.collection)
		if err != nil || len(raw) != 12 {
			return fmt.Errorf("collection must be 24 hex digits, got %q", signFlags.collection)
		}
		var id [12]byte
		copy(id[:], raw)
		claims.CollectionID = &id
	}
	token, err := codec.Sign(claims)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// verifiedJSON is the printed form of a verified token.
type verifiedJSON struct {
	MessageID    uint64    `json:"message_id,string"`
	ChannelID    uint64    `json:"channel_id,string"`
	AuthorID     uint64    `json:"author_id,string"`
	Scope        string    `json:"scope"`
	Payload      int       `json:"user_data"`
	CollectionID string    `json:"workshop_collection_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	codec, err := codecFromConfig()
	if err != nil {
		return err
	}
	v, err := codec.Verify(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(verifiedJSON{
		MessageID:    v.MessageID,
		ChannelID:    v.ChannelID,
		AuthorID:     v.AuthorID,
		Scope:        v.Scope.String(),
		Payload:      v.Payload,
		CollectionID: v.CollectionHex(),
		Timestamp:    v.Timestamp,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
