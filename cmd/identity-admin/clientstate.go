package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
)

// State keys live under client:{clientID}:{key}, matching the namespace the
// gateway's Redis state store writes.
const clientStatePrefix = "client:"

const clientStateValuePreviewLen = 48

type listClientStateOptions struct {
	ClientID string
	Key      string
	All      bool
	Limit    int
}

type clearClientStateOptions struct {
	ClientID string
	Key      string
	All      bool
	DryRun   bool
	Yes      bool
}

func runListClientState(cmdCtx *commandContext, args []string) error {
	opts, err := parseListClientStateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    false,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	resp, err := inspectClientState(&inspectClientStateRequest{
		Ctx:     ctx,
		Client:  redisClient,
		Logger:  cmdCtx.Logger,
		Options: &opts,
	})
	if err != nil {
		return err
	}

	return printClientStateEntries(resp, &opts)
}

func runClearClientState(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearClientStateFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes && !opts.DryRun {
		target := "client " + opts.ClientID
		if opts.All {
			target = "all clients"
		}
		if confirmErr := confirm(fmt.Sprintf("Clear session state for %s?", target)); confirmErr != nil {
			return confirmErr
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    false,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	deleted, err := purgeClientState(&purgeClientStateRequest{
		Ctx:     ctx,
		Client:  redisClient,
		Logger:  cmdCtx.Logger,
		Options: opts,
	})
	if err != nil {
		return err
	}

	if opts.DryRun {
		return writef(os.Stdout, "Dry-run: would delete %d keys\n", deleted)
	}
	return writef(os.Stdout, "Deleted %d keys\n", deleted)
}

func parseListClientStateFlags(args []string) (listClientStateOptions, error) {
	fs := flag.NewFlagSet("list-client-state", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listClientStateOptions
	fs.StringVar(&opts.ClientID, "client-id", "", "Client ID to inspect (required unless --all)")
	fs.StringVar(&opts.Key, "key", "", "Optional state key filter (substring match)")
	fs.BoolVar(&opts.All, "all", false, "Inspect state for all clients")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum keys to display (0 for unlimited)")

	if err := fs.Parse(args); err != nil {
		return listClientStateOptions{}, err
	}

	opts.ClientID = strings.TrimSpace(opts.ClientID)
	if !opts.All && opts.ClientID == "" {
		return listClientStateOptions{}, errors.New("--client-id is required unless --all is set")
	}
	if opts.Limit < 0 {
		return listClientStateOptions{}, errors.New("--limit must be zero or positive")
	}

	return opts, nil
}

func parseClearClientStateFlags(args []string) (clearClientStateOptions, error) {
	fs := flag.NewFlagSet("clear-client-state", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearClientStateOptions
	fs.StringVar(&opts.ClientID, "client-id", "", "Client ID to clear (required unless --all)")
	fs.StringVar(&opts.Key, "key", "", "Optional exact state key to clear")
	fs.BoolVar(&opts.All, "all", false, "Clear state for all clients")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clearClientStateOptions{}, err
	}

	opts.ClientID = strings.TrimSpace(opts.ClientID)
	if !opts.All && opts.ClientID == "" {
		return clearClientStateOptions{}, errors.New("--client-id is required unless --all is set")
	}
	if opts.All && opts.ClientID != "" {
		return clearClientStateOptions{}, errors.New("--all and --client-id are mutually exclusive")
	}

	return opts, nil
}

func buildClientStatePattern(clientID, key string) string {
	clientPart := "*"
	if clientID != "" {
		clientPart = clientID
	}
	keyPart := "*"
	if key != "" {
		keyPart = key
	}
	return clientStatePrefix + clientPart + ":" + keyPart
}

type purgeClientStateRequest struct {
	Ctx     context.Context
	Client  redis.UniversalClient
	Logger  *slog.Logger
	Options clearClientStateOptions
}

func purgeClientState(req *purgeClientStateRequest) (int64, error) {
	if req == nil {
		return 0, errors.New("purge request is required")
	}
	pattern := buildClientStatePattern(req.Options.ClientID, req.Options.Key)
	req.Logger.Info("scanning redis", "pattern", pattern, "dry_run", req.Options.DryRun)

	iter := req.Client.Scan(req.Ctx, 0, pattern, 1000).Iterator()
	keys := make([]string, 0)
	for iter.Next(req.Ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan redis: %w", err)
	}
	if len(keys) == 0 || req.Options.DryRun {
		return int64(len(keys)), nil
	}

	var deleted int64
	for start := 0; start < len(keys); start += 100 {
		end := min(start+100, len(keys))
		n, err := req.Client.Del(req.Ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("delete redis keys: %w", err)
		}
		deleted += n
	}
	req.Logger.Info("redis keys deleted", "count", deleted)
	return deleted, nil
}

type inspectClientStateRequest struct {
	Ctx     context.Context
	Client  redis.UniversalClient
	Logger  *slog.Logger
	Options *listClientStateOptions
}

type clientStateEntry struct {
	ClientID string
	Key      string
	Value    string
	TTL      time.Duration
}

type inspectClientStateResponse struct {
	Entries []clientStateEntry
	Total   int
}

func inspectClientState(req *inspectClientStateRequest) (inspectClientStateResponse, error) {
	if req == nil || req.Options == nil {
		return inspectClientStateResponse{}, nil
	}
	pattern := buildClientStatePattern(req.Options.ClientID, "")
	req.Logger.Info("scanning redis", "pattern", pattern)

	collector := clientStateCollector{limit: req.Options.Limit, keyFilter: req.Options.Key}
	iter := req.Client.Scan(req.Ctx, 0, pattern, 1000).Iterator()
	for iter.Next(req.Ctx) {
		if err := collector.addKey(req, iter.Val()); err != nil {
			return inspectClientStateResponse{}, err
		}
	}
	if err := iter.Err(); err != nil {
		return inspectClientStateResponse{}, fmt.Errorf("scan redis: %w", err)
	}

	return collector.result(), nil
}

type clientStateCollector struct {
	entries   []clientStateEntry
	total     int
	limit     int
	keyFilter string
}

func (c *clientStateCollector) addKey(req *inspectClientStateRequest, key string) error {
	if req == nil {
		return nil
	}

	clientID, stateKey, err := parseClientStateKey(key)
	if err != nil {
		req.Logger.Warn("skipping redis key", "key", key, "error", err)
		return nil
	}
	if c.keyFilter != "" && !strings.Contains(stateKey, c.keyFilter) {
		return nil
	}

	c.total++
	if c.limit > 0 && len(c.entries) >= c.limit {
		return nil
	}

	value, err := req.Client.Get(req.Ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("fetch redis value for key %q: %w", key, err)
	}

	ttl, err := req.Client.TTL(req.Ctx, key).Result()
	if err != nil {
		return fmt.Errorf("query redis ttl for key %q: %w", key, err)
	}

	c.entries = append(c.entries, clientStateEntry{
		ClientID: clientID,
		Key:      stateKey,
		Value:    previewValue(value),
		TTL:      ttl,
	})
	return nil
}

func (c *clientStateCollector) result() inspectClientStateResponse {
	sort.Slice(c.entries, func(i, j int) bool {
		if c.entries[i].ClientID == c.entries[j].ClientID {
			return c.entries[i].Key < c.entries[j].Key
		}
		return c.entries[i].ClientID < c.entries[j].ClientID
	})

	return inspectClientStateResponse{
		Entries: c.entries,
		Total:   c.total,
	}
}

var errUnexpectedClientStateKeyFormat = errors.New("unexpected client state key format")

func parseClientStateKey(key string) (string, string, error) {
	parts := strings.Split(key, ":")
	if len(parts) < 3 {
		return "", "", errUnexpectedClientStateKeyFormat
	}
	if parts[0]+":" != clientStatePrefix {
		return "", "", errUnexpectedClientStateKeyFormat
	}
	clientID := parts[1]
	stateKey := strings.Join(parts[2:], ":")
	return clientID, stateKey, nil
}

func previewValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	if len(value) > clientStateValuePreviewLen {
		return value[:clientStateValuePreviewLen] + "..."
	}
	return value
}

func printClientStateEntries(resp inspectClientStateResponse, opts *listClientStateOptions) error {
	if opts == nil {
		return errors.New("list options are required")
	}
	if err := writef(os.Stdout, "\nClient state entries"); err != nil {
		return fmt.Errorf("write client state header: %w", err)
	}
	if opts.Limit > 0 {
		if err := writef(os.Stdout, " (showing up to %d)", opts.Limit); err != nil {
			return fmt.Errorf("write client state limit: %w", err)
		}
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write client state header newline: %w", err)
	}

	if len(resp.Entries) == 0 {
		if err := writeln(os.Stdout, "  (no keys matched)"); err != nil {
			return fmt.Errorf("write client state empty message: %w", err)
		}
		return nil
	}

	if err := renderClientStateTable(resp.Entries); err != nil {
		return err
	}

	if err := writef(os.Stdout, "Total keys matched: %d\n", resp.Total); err != nil {
		return fmt.Errorf("write client state total: %w", err)
	}
	if opts.Limit > 0 && resp.Total > len(resp.Entries) {
		if err := writeln(os.Stdout, "More keys available; increase --limit to view additional entries."); err != nil {
			return fmt.Errorf("write client state more-keys message: %w", err)
		}
	}
	return nil
}

func renderClientStateTable(entries []clientStateEntry) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "CLIENT ID\tKEY\tVALUE\tTTL"); err != nil {
		return fmt.Errorf("write client state header row: %w", err)
	}

	for _, entry := range entries {
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\n",
			entry.ClientID,
			entry.Key,
			entry.Value,
			formatRedisTTL(entry.TTL),
		); err != nil {
			return fmt.Errorf("write client state row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush client state table: %w", err)
	}
	return nil
}

func formatRedisTTL(ttl time.Duration) string {
	switch {
	case ttl == -1*time.Second:
		return "no expiry"
	case ttl == -2*time.Second:
		return "missing"
	case ttl < 0:
		return ttl.String()
	default:
		return ttl.Round(time.Millisecond).String()
	}
}
