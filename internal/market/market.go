// Package market random-walks club and duelist values between auctions.
// It only ever writes value columns; ownership, bids and wins are untouched.
package market

import (
	"context"
	"log/slog"
	"math"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"auctionhouse/internal/ledger"
)

type dynamics struct {
	NoiseScale        float64
	ShockProb         float64
	ShockScale        float64
	ExtremeShockProb  float64
	ExtremeShockScale float64
	MeanReversion     float64
	RegimeSwitchProb  float64
	MaxDropPerTick    float64
}

func volatilityParams(mode string) dynamics {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return dynamics{
			NoiseScale:        0.020,
			ShockProb:         0.05,
			ShockScale:        0.09,
			ExtremeShockProb:  0.008,
			ExtremeShockScale: 0.22,
			MeanReversion:     0.03,
			RegimeSwitchProb:  0.04,
			MaxDropPerTick:    0.50,
		}
	case "wild":
		return dynamics{
			NoiseScale:        0.060,
			ShockProb:         0.18,
			ShockScale:        0.20,
			ExtremeShockProb:  0.050,
			ExtremeShockScale: 0.60,
			MeanReversion:     0.010,
			RegimeSwitchProb:  0.11,
			MaxDropPerTick:    1.20,
		}
	default:
		return dynamics{
			NoiseScale:        0.038,
			ShockProb:         0.11,
			ShockScale:        0.14,
			ExtremeShockProb:  0.020,
			ExtremeShockScale: 0.35,
			MeanReversion:     0.018,
			RegimeSwitchProb:  0.07,
			MaxDropPerTick:    0.90,
		}
	}
}

type Regime string

const (
	Bear    Regime = "bear"
	Neutral Regime = "neutral"
	Bull    Regime = "bull"
)

type Drifter struct {
	store  ledger.Store
	log    *slog.Logger
	params dynamics

	mu     sync.Mutex
	rand   func() float64
	regime Regime
}

func NewDrifter(store ledger.Store, logger *slog.Logger, volatility string) *Drifter {
	if logger == nil {
		logger = slog.Default()
	}
	src := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return &Drifter{
		store:  store,
		log:    logger,
		params: volatilityParams(volatility),
		rand:   src.Float64,
		regime: Neutral,
	}
}

// SetRand replaces the random source, for reproducible runs.
func (d *Drifter) SetRand(f func() float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rand = f
}

func (d *Drifter) Regime() Regime {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regime
}

func (d *Drifter) nextFloat() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rand()
}

type TickResult struct {
	Regime   Regime
	Clubs    int
	Duelists int
}

// Tick moves every club and duelist value one step in a single transaction.
func (d *Drifter) Tick(ctx context.Context) (TickResult, error) {
	if d.nextFloat() < d.params.RegimeSwitchProb {
		d.mu.Lock()
		d.regime = randomRegime(d.rand())
		d.mu.Unlock()
	}
	res := TickResult{Regime: d.Regime()}
	err := d.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		clubs, err := tx.Clubs(ctx)
		if err != nil {
			return err
		}
		for _, c := range clubs {
			if err := tx.SetClubValue(ctx, c.ID, d.step(c.Value, c.BasePrice, res.Regime)); err != nil {
				return err
			}
		}
		duelists, err := tx.Duelists(ctx)
		if err != nil {
			return err
		}
		for _, p := range duelists {
			if err := tx.SetDuelistValue(ctx, p.ID, d.step(p.Value, p.BasePrice, res.Regime)); err != nil {
				return err
			}
		}
		res.Clubs, res.Duelists = len(clubs), len(duelists)
		return nil
	})
	if err != nil {
		return TickResult{}, err
	}
	d.log.Info("market tick", "regime", string(res.Regime), "clubs", res.Clubs, "duelists", res.Duelists)
	return res, nil
}

func (d *Drifter) step(value, anchor int64, regime Regime) int64 {
	ret := regimeDrift(regime) + d.params.NoiseScale*normalish(d.nextFloat()) + meanReversion(value, anchor, d.params.MeanReversion)
	if d.nextFloat() < d.params.ShockProb {
		ret += signedShock(d.nextFloat(), d.nextFloat(), d.params.ShockScale)
	}
	if d.nextFloat() < d.params.ExtremeShockProb {
		ret += signedShock(d.nextFloat(), d.nextFloat(), d.params.ExtremeShockScale)
	}
	next := evolveValue(value, ret, d.params.MaxDropPerTick)
	if next > ledger.MaxAmount {
		next = ledger.MaxAmount
	}
	return next
}

func randomRegime(seed float64) Regime {
	switch {
	case seed < 0.33:
		return Bear
	case seed < 0.66:
		return Neutral
	default:
		return Bull
	}
}

func regimeDrift(r Regime) float64 {
	switch r {
	case Bull:
		return 0.0085
	case Bear:
		return -0.0085
	default:
		return 0
	}
}

func meanReversion(value, anchor int64, strength float64) float64 {
	if anchor <= 0 {
		return 0
	}
	return strength * (float64(anchor-value) / float64(anchor))
}

func normalish(seed float64) float64 {
	return seed + seed - 1
}

func signedShock(magSeed, signSeed, base float64) float64 {
	mag := base * (0.35 + 2.8*magSeed*magSeed)
	if signSeed < 0.5 {
		return -mag
	}
	return mag
}

// evolveValue applies a log return, bounding only the downside.
func evolveValue(value int64, ret, maxDrop float64) int64 {
	if value <= 0 {
		return 1
	}
	if ret < -maxDrop {
		ret = -maxDrop
	}
	next := int64(math.Round(float64(value) * math.Exp(ret)))
	if next < 1 {
		next = 1
	}
	return next
}
