package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stakingcore/config"
	"stakingcore/crypto"
	"stakingcore/gateway/middleware"
	"stakingcore/integrations/exports"
	"stakingcore/native/staking"
	"stakingcore/storage/archive"
)

type assetFlags struct {
	kind string
	mint string
}

func (f *assetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "asset", "native", "asset class: native, fungible or nft")
	cmd.Flags().StringVar(&f.mint, "mint", "", "token or collectible mint address")
}

func (f *assetFlags) asset() (staking.Asset, error) {
	kind, err := staking.ParseAssetKind(f.kind)
	if err != nil {
		return staking.Asset{}, err
	}
	asset := staking.Asset{Kind: kind}
	if strings.TrimSpace(f.mint) != "" {
		if asset.Mint, err = crypto.ParseAddress(f.mint); err != nil {
			return staking.Asset{}, fmt.Errorf("mint: %w", err)
		}
	}
	return asset, asset.Validate()
}

func (a *app) keygenCmd() *cobra.Command {
	var (
		keyFile       string
		passphraseEnv string
		light         bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new identity, optionally saved to an encrypted key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			addr := key.PubKey().Address()
			if keyFile != "" {
				pass, err := readPassphrase(passphraseEnv, a.stderr)
				if err != nil {
					return err
				}
				kf := crypto.StandardKeyFile
				if light {
					kf = crypto.LightKeyFile
				}
				if err := kf.Save(keyFile, key, pass); err != nil {
					return err
				}
				a.logger.Info("key file written", "path", keyFile, "address", addr.String())
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.emit(map[string]string{"address": addr.String(), "hex": addr.Hex()},
				[]string{"ADDRESS", "HEX"}, [][]string{{addr.String(), addr.Hex()}})
		},
	}
	cmd.Flags().StringVar(&keyFile, "keyfile", "", "write the key to this encrypted file")
	cmd.Flags().StringVar(&passphraseEnv, "passphrase-env", defaultPassphraseEnv, "environment variable holding the key file passphrase")
	cmd.Flags().BoolVar(&light, "light", false, "use cheap scrypt parameters")
	_ = cmd.Flags().MarkHidden("light")
	return cmd
}

func (a *app) initCmd() *cobra.Command {
	var params, caller string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Install the staking parameters (admin only, once)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadParams(params)
			if err != nil {
				return err
			}
			callerAddr, err := a.resolveCaller(caller)
			if err != nil {
				return err
			}
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.node.Initialize(callerAddr, cfg); err != nil {
				return err
			}
			stored, err := rt.node.Config()
			if err != nil {
				return err
			}
			return a.printConfig(stored)
		},
	}
	cmd.Flags().StringVar(&params, "params", "", "YAML staking parameter file")
	cmd.Flags().StringVar(&caller, "caller", "", "acting identity (defaults to the configured admin)")
	_ = cmd.MarkFlagRequired("params")
	return cmd
}

func (a *app) resolveCaller(value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return a.cfg.AdminAddress()
	}
	return crypto.ParseAddress(value)
}

func (a *app) printConfig(cfg *staking.Config) error {
	p, err := a.printer()
	if err != nil {
		return err
	}
	view := config.Params{
		PointsPerNFTStake:      cfg.PointsPerNFTStake,
		PointsPerNativeStake:   cfg.PointsPerNativeStake,
		PointsPerFungibleStake: cfg.PointsPerFungibleStake,
		MinFreezePeriod:        cfg.MinFreezePeriod,
		AprBps:                 cfg.AnnualPercentageRateBps,
	}
	return p.emit(view, []string{"NFT", "NATIVE", "FUNGIBLE", "MIN FREEZE", "APR BPS"}, [][]string{{
		strconv.FormatUint(uint64(view.PointsPerNFTStake), 10),
		strconv.FormatUint(uint64(view.PointsPerNativeStake), 10),
		strconv.FormatUint(uint64(view.PointsPerFungibleStake), 10),
		strconv.FormatInt(view.MinFreezePeriod, 10),
		strconv.FormatUint(uint64(view.AprBps), 10),
	}})
}

func (a *app) fundCmd() *cobra.Command {
	var (
		assetF assetFlags
		amount uint64
	)
	cmd := &cobra.Command{
		Use:   "fund <owner>",
		Short: "Credit spendable balance in the reference ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := crypto.ParseAddress(args[0])
			if err != nil {
				return err
			}
			asset, err := assetF.asset()
			if err != nil {
				return err
			}
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.node.Fund(owner, asset, amount); err != nil {
				return err
			}
			balance, err := rt.node.Balance(owner, asset)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.emit(map[string]any{"owner": owner.String(), "asset": asset.String(), "balance": balance},
				[]string{"OWNER", "ASSET", "BALANCE"}, [][]string{{owner.String(), asset.String(), strconv.FormatUint(balance, 10)}})
		},
	}
	assetF.register(cmd)
	cmd.Flags().Uint64Var(&amount, "amount", 0, "base units to credit")
	return cmd
}

func (a *app) stakeCmd() *cobra.Command {
	var (
		assetF     assetFlags
		owner      string
		amount     uint64
		seed       uint64
		locked     bool
		lockPeriod time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Open a position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerAddr, err := crypto.ParseAddress(owner)
			if err != nil {
				return fmt.Errorf("owner: %w", err)
			}
			asset, err := assetF.asset()
			if err != nil {
				return err
			}
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			pos, err := rt.node.Stake(staking.StakeRequest{
				Owner:      ownerAddr,
				Asset:      asset,
				Amount:     amount,
				Seed:       seed,
				Locked:     locked,
				LockPeriod: int64(lockPeriod / time.Second),
			})
			if err != nil {
				return err
			}
			return a.printPositions([]*staking.Position{pos}, true)
		},
	}
	assetF.register(cmd)
	cmd.Flags().StringVar(&owner, "owner", "", "staking identity")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "base units to deposit (ignored for nft)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "distinguishes concurrent positions in the same asset")
	cmd.Flags().BoolVar(&locked, "locked", false, "opt into the locked APR bonus")
	cmd.Flags().DurationVar(&lockPeriod, "lock-period", 0, "minimum holding period, e.g. 720h")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (a *app) unstakeCmd() *cobra.Command {
	var caller identityFlags
	cmd := &cobra.Command{
		Use:   "unstake <position-id>",
		Short: "Close a position and mint its yield",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := staking.ParsePositionID(args[0])
			if err != nil {
				return err
			}
			callerAddr, err := caller.resolve(a.stderr)
			if err != nil {
				return fmt.Errorf("caller: %w", err)
			}
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			pos, reward, err := rt.node.Unstake(callerAddr, id)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			out := newPositionOutput(pos)
			return p.emit(map[string]any{"position": out, "reward": reward},
				append(append([]string{}, positionHeader...), "REWARD"),
				[][]string{append(out.row(), strconv.FormatUint(reward, 10))})
		},
	}
	caller.register(cmd.Flags(), "caller", "acting identity; must own the position")
	return cmd
}

func (a *app) accountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account <address>",
		Short: "Show a staker's points, staked totals and reward balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := crypto.ParseAddress(args[0])
			if err != nil {
				return err
			}
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			acc, err := rt.node.Account(addr)
			if err != nil {
				return err
			}
			rewards, err := rt.node.RewardBalance(addr)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			view := map[string]any{
				"address":        addr.String(),
				"points":         acc.Points,
				"nativeStaked":   acc.NativeStaked,
				"fungibleStaked": acc.FungibleStaked,
				"nftStaked":      acc.NFTStaked,
				"rewardBalance":  rewards,
			}
			return p.emit(view, []string{"ADDRESS", "POINTS", "NATIVE", "FUNGIBLE", "NFT", "REWARDS"}, [][]string{{
				addr.String(),
				strconv.FormatUint(acc.Points, 10),
				strconv.FormatUint(acc.NativeStaked, 10),
				strconv.FormatUint(acc.FungibleStaked, 10),
				strconv.FormatUint(acc.NFTStaked, 10),
				strconv.FormatUint(rewards, 10),
			}})
		},
	}
}

func (a *app) positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions [owner]",
		Short: "List active positions, optionally for one owner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			var positions []*staking.Position
			if len(args) == 1 {
				owner, err := crypto.ParseAddress(args[0])
				if err != nil {
					return err
				}
				positions, err = rt.node.PositionsByOwner(owner)
				if err != nil {
					return err
				}
			} else {
				positions, err = rt.node.Positions()
				if err != nil {
					return err
				}
			}
			return a.printPositions(positions, false)
		},
	}
}

func (a *app) printPositions(positions []*staking.Position, single bool) error {
	p, err := a.printer()
	if err != nil {
		return err
	}
	out := make([]positionOutput, 0, len(positions))
	rows := make([][]string, 0, len(positions))
	for _, pos := range positions {
		view := newPositionOutput(pos)
		out = append(out, view)
		rows = append(rows, view.row())
	}
	if single && len(out) == 1 {
		return p.emit(out[0], positionHeader, rows)
	}
	return p.emit(out, positionHeader, rows)
}

func (a *app) previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <position-id>",
		Short: "Show the reward an unstake would mint now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := staking.ParsePositionID(args[0])
			if err != nil {
				return err
			}
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			preview, err := rt.node.PreviewUnstake(id)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			view := map[string]any{
				"position":  newPositionOutput(preview.Position),
				"elapsed":   preview.Elapsed,
				"unlocksAt": preview.UnlocksAt,
				"unlocked":  preview.Unlocked,
				"reward":    preview.Reward,
			}
			return p.emit(view, []string{"ID", "ELAPSED", "UNLOCKS", "UNLOCKED", "REWARD"}, [][]string{{
				shortID(id.String()),
				strconv.FormatInt(preview.Elapsed, 10),
				formatUnix(preview.UnlocksAt),
				strconv.FormatBool(preview.Unlocked),
				strconv.FormatUint(preview.Reward, 10),
			}})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write a snapshot of every active position (csv, jsonl or parquet)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			var (
				f   exports.Format
				err error
			)
			if format != "" {
				f, err = exports.ParseFormat(format)
			} else {
				f, err = exports.FormatForPath(path)
			}
			if err != nil {
				return err
			}
			rt, err := a.openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg, err := rt.node.Config()
			if err != nil {
				return err
			}
			positions, err := rt.node.Positions()
			if err != nil {
				return err
			}
			rows, err := exports.Snapshot(positions, cfg, a.clock())
			if err != nil {
				return err
			}
			if err := exports.WriteFile(path, f, rows); err != nil {
				return err
			}
			a.logger.Info("export written", "path", path, "format", string(f), "rows", len(rows))
			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.emit(map[string]any{"path": path, "format": f, "rows": len(rows)},
				[]string{"PATH", "FORMAT", "ROWS"}, [][]string{{path, string(f), strconv.Itoa(len(rows))}})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv, jsonl or parquet (default: from the file extension)")
	return cmd
}

func (a *app) archiveCmd() *cobra.Command {
	var filter archive.Filter
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Query archived staking events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.ArchiveDSN == "" {
				return archive.ErrDSNRequired
			}
			store, err := archive.Open(a.cfg.ArchiveDSN, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()
			records, err := store.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			type eventOutput struct {
				Type       string            `json:"type"`
				Digest     string            `json:"digest"`
				CreatedAt  time.Time         `json:"createdAt"`
				Attributes map[string]string `json:"attributes"`
			}
			out := make([]eventOutput, 0, len(records))
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				evt, err := rec.Event()
				if err != nil {
					return err
				}
				out = append(out, eventOutput{Type: rec.Type, Digest: rec.Digest, CreatedAt: rec.CreatedAt, Attributes: evt.Attributes})
				rows = append(rows, []string{rec.CreatedAt.Format(time.RFC3339), rec.Type, shortID(rec.PositionID), rec.Owner, evt.Attr("amount"), evt.Attr("reward")})
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.emit(out, []string{"TIME", "TYPE", "POSITION", "OWNER", "AMOUNT", "REWARD"}, rows)
		},
	}
	cmd.Flags().StringVar(&filter.Type, "type", "", "event type, e.g. stake.closed")
	cmd.Flags().StringVar(&filter.Owner, "owner", "", "owner address")
	cmd.Flags().StringVar(&filter.PositionID, "position", "", "position id")
	cmd.Flags().IntVar(&filter.Limit, "limit", 100, "maximum number of events")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		ttl     time.Duration
		subject identityFlags
	)
	cmd := &cobra.Command{
		Use:   "token [address]",
		Short: "Issue a gateway bearer token for an identity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				subject.address = args[0]
			}
			addr, err := subject.resolve(a.stderr)
			if err != nil {
				return err
			}
			auth := middleware.NewAuthenticator(a.authConfig(), a.logger)
			token, err := auth.Issue(addr, ttl, middleware.ScopeStakeWrite)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&subject.keyFile, "keyfile", "", "encrypted key file holding the identity")
	cmd.Flags().StringVar(&subject.passphraseEnv, "passphrase-env", defaultPassphraseEnv, "environment variable holding the key file passphrase")
	return cmd
}

func (a *app) authConfig() middleware.AuthConfig {
	return middleware.AuthConfig{
		HMACSecret: a.cfg.Auth.HMACSecret,
		Issuer:     a.cfg.Auth.Issuer,
		Audience:   a.cfg.Auth.Audience,
		ClockSkew:  time.Duration(a.cfg.Auth.ClockSkewSeconds) * time.Second,
	}
}
