package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	stakeerr "stakingcore/core/errors"
	"stakingcore/crypto"
	"stakingcore/gateway/middleware"
	"stakingcore/native/staking"
)

const maxBodyBytes = 1 << 16

var errWritesDisabled = errors.New("write routes disabled: no auth secret configured")

// StakingService is the subset of the node the gateway serves.
type StakingService interface {
	Config() (*staking.Config, error)
	Account(addr crypto.Address) (*staking.UserAccount, error)
	RewardBalance(owner crypto.Address) (uint64, error)
	Position(id staking.PositionID) (*staking.Position, error)
	PositionsByOwner(owner crypto.Address) ([]*staking.Position, error)
	PreviewUnstake(id staking.PositionID) (*staking.Preview, error)
	Stake(req staking.StakeRequest) (*staking.Position, error)
	Unstake(caller crypto.Address, id staking.PositionID) (*staking.Position, uint64, error)
}

type stakingRoutes struct {
	service StakingService
	logger  *slog.Logger
}

type assetView struct {
	Kind string `json:"kind"`
	Mint string `json:"mint,omitempty"`
}

type positionView struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Asset      assetView `json:"asset"`
	Seed       uint64    `json:"seed"`
	Amount     uint64    `json:"amount"`
	StakedAt   int64     `json:"stakedAt"`
	LockPeriod int64     `json:"lockPeriod"`
	UnlocksAt  int64     `json:"unlocksAt"`
	Locked     bool      `json:"locked"`
	Status     string    `json:"status"`
}

type accountView struct {
	Address        string `json:"address"`
	Points         uint64 `json:"points"`
	NFTStaked      uint64 `json:"nftStaked"`
	FungibleStaked uint64 `json:"fungibleStaked"`
	NativeStaked   uint64 `json:"nativeStaked"`
	RewardBalance  uint64 `json:"rewardBalance"`
}

type configView struct {
	PointsPerNFTStake      uint32 `json:"pointsPerNftStake"`
	PointsPerNativeStake   uint32 `json:"pointsPerNativeStake"`
	PointsPerFungibleStake uint32 `json:"pointsPerFungibleStake"`
	MinFreezePeriod        int64  `json:"minFreezePeriod"`
	AprBps                 uint32 `json:"aprBps"`
}

type previewView struct {
	Position  positionView `json:"position"`
	Elapsed   int64        `json:"elapsed"`
	UnlocksAt int64        `json:"unlocksAt"`
	Unlocked  bool         `json:"unlocked"`
	Reward    uint64       `json:"reward"`
}

type stakeBody struct {
	Asset      string `json:"asset"`
	Mint       string `json:"mint,omitempty"`
	Amount     uint64 `json:"amount"`
	Seed       uint64 `json:"seed"`
	Locked     bool   `json:"locked"`
	LockPeriod int64  `json:"lockPeriod"`
}

type unstakeView struct {
	Position positionView `json:"position"`
	Reward   uint64       `json:"reward"`
}

func newPositionView(pos *staking.Position) positionView {
	view := positionView{
		ID:         pos.ID().String(),
		Owner:      pos.Owner.String(),
		Asset:      assetView{Kind: pos.Asset.Kind.String()},
		Seed:       pos.Seed,
		Amount:     pos.Amount,
		StakedAt:   pos.StakedAt,
		LockPeriod: pos.LockPeriod,
		UnlocksAt:  pos.UnlocksAt(),
		Locked:     pos.Locked,
		Status:     pos.Status.String(),
	}
	if !pos.Asset.Mint.IsZero() {
		view.Asset.Mint = pos.Asset.Mint.String()
	}
	return view
}

func (sr *stakingRoutes) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := sr.service.Config()
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configView{
		PointsPerNFTStake:      cfg.PointsPerNFTStake,
		PointsPerNativeStake:   cfg.PointsPerNativeStake,
		PointsPerFungibleStake: cfg.PointsPerFungibleStake,
		MinFreezePeriod:        cfg.MinFreezePeriod,
		AprBps:                 cfg.AnnualPercentageRateBps,
	})
}

func (sr *stakingRoutes) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	account, err := sr.service.Account(addr)
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	rewards, err := sr.service.RewardBalance(addr)
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView{
		Address:        addr.String(),
		Points:         account.Points,
		NFTStaked:      account.NFTStaked,
		FungibleStaked: account.FungibleStaked,
		NativeStaked:   account.NativeStaked,
		RewardBalance:  rewards,
	})
}

func (sr *stakingRoutes) listPositions(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	positions, err := sr.service.PositionsByOwner(addr)
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	out := make([]positionView, 0, len(positions))
	for _, pos := range positions {
		out = append(out, newPositionView(pos))
	}
	writeJSON(w, http.StatusOK, out)
}

func (sr *stakingRoutes) getPosition(w http.ResponseWriter, r *http.Request) {
	id, err := staking.ParsePositionID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	pos, err := sr.service.Position(id)
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(pos))
}

func (sr *stakingRoutes) previewUnstake(w http.ResponseWriter, r *http.Request) {
	id, err := staking.ParsePositionID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	preview, err := sr.service.PreviewUnstake(id)
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewView{
		Position:  newPositionView(preview.Position),
		Elapsed:   preview.Elapsed,
		UnlocksAt: preview.UnlocksAt,
		Unlocked:  preview.Unlocked,
		Reward:    preview.Reward,
	})
}

func (sr *stakingRoutes) stake(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, stakeerr.ErrUnauthorized)
		return
	}
	var body stakeBody
	if err := decodeBody(r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := parseAsset(body.Asset, body.Mint)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	pos, err := sr.service.Stake(staking.StakeRequest{
		Owner:      caller,
		Asset:      asset,
		Amount:     body.Amount,
		Seed:       body.Seed,
		Locked:     body.Locked,
		LockPeriod: body.LockPeriod,
	})
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPositionView(pos))
}

func (sr *stakingRoutes) unstake(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, stakeerr.ErrUnauthorized)
		return
	}
	id, err := staking.ParsePositionID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	pos, reward, err := sr.service.Unstake(caller, id)
	if err != nil {
		sr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unstakeView{Position: newPositionView(pos), Reward: reward})
}

func parseAsset(kind, mint string) (staking.Asset, error) {
	k, err := staking.ParseAssetKind(kind)
	if err != nil {
		return staking.Asset{}, err
	}
	asset := staking.Asset{Kind: k}
	if strings.TrimSpace(mint) != "" {
		addr, err := crypto.ParseAddress(mint)
		if err != nil {
			return staking.Asset{}, fmt.Errorf("mint: %w", err)
		}
		asset.Mint = addr
	}
	return asset, asset.Validate()
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, stakeerr.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, stakeerr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, stakeerr.ErrDuplicatePosition),
		errors.Is(err, stakeerr.ErrLockPeriodNotElapsed),
		errors.Is(err, stakeerr.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, stakeerr.ErrInvalidLockPeriod),
		errors.Is(err, stakeerr.ErrInvalidAsset):
		return http.StatusBadRequest
	case errors.Is(err, stakeerr.ErrOverflow),
		errors.Is(err, stakeerr.ErrUnderflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, stakeerr.ErrCustodyFailure):
		return http.StatusBadGateway
	case errors.Is(err, stakeerr.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (sr *stakingRoutes) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		sr.logger.Error("staking request failed", "path", r.URL.Path, "error", err)
	}
	writeJSONError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": message})
}
