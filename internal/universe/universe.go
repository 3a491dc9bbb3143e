package universe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSymbol is returned when a symbol is not part of the universe.
var ErrUnknownSymbol = errors.New("symbol not in universe")

// IDX is the default tracked universe: LQ45 constituents plus popular second liners.
var IDX = []string{
	// Banks
	"BBCA.JK", "BBRI.JK", "BMRI.JK", "BBNI.JK",
	// Telco
	"TLKM.JK", "ISAT.JK", "EXCL.JK", "MTEL.JK",
	// Tech
	"GOTO.JK", "EMTK.JK", "BUKA.JK", "BELI.JK",
	// Auto & industrial
	"ASII.JK", "UNTR.JK", "AUTO.JK", "DRMA.JK",
	// Consumer goods
	"ICBP.JK", "INDF.JK", "UNVR.JK", "MYOR.JK", "CMRY.JK", "GOOD.JK",
	"GGRM.JK", "HMSP.JK", "KLBF.JK", "SIDO.JK",
	// Mining & energy
	"ADRO.JK", "PTBA.JK", "ITMG.JK", "HRUM.JK", "INDY.JK",
	"PGAS.JK", "AKRA.JK", "MEDC.JK", "ELSA.JK",
	// Metals & minerals
	"ANTM.JK", "INCO.JK", "TINS.JK", "MDKA.JK", "BRMS.JK", "AMMN.JK", "MBMA.JK",
	// Infrastructure & construction
	"JSMR.JK", "WIKA.JK", "PTPP.JK", "ADHI.JK", "SMGR.JK", "INTP.JK",
	// Property
	"CTRA.JK", "BSDE.JK", "PWON.JK", "SMRA.JK", "ASRI.JK",
	// Retail
	"AMRT.JK", "MAPI.JK", "ACES.JK", "LPPF.JK", "ERAA.JK",
	// Poultry
	"CPIN.JK", "JPFA.JK",
	// Others / second liners
	"TPIA.JK", "BRPT.JK", "BREN.JK", "CUAN.JK", "PANI.JK",
	"BBTN.JK", "BRIS.JK", "BTPS.JK", "PNBN.JK", "BDMN.JK",
	"SRTG.JK", "TBIG.JK", "TOWR.JK", "SCMA.JK", "MNCN.JK",
	"ARTO.JK", "INKP.JK", "TKIM.JK",
}

// Smoke is a small universe for quick end-to-end runs.
var Smoke = []string{"BBCA.JK", "TLKM.JK", "GOTO.JK", "BMRI.JK", "ASII.JK"}

// Universe is an immutable ordered set of ticker symbols.
type Universe struct {
	symbols []string
	index   map[string]struct{}
}

// New builds a Universe from symbols. Blank entries are dropped, symbols are
// upper-cased and duplicates keep their first position.
func New(symbols []string) *Universe {
	u := &Universe{index: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := u.index[s]; dup {
			continue
		}
		u.index[s] = struct{}{}
		u.symbols = append(u.symbols, s)
	}
	return u
}

// Default returns the IDX universe.
func Default() *Universe { return New(IDX) }

// Symbols returns the symbols in iteration order. The slice is a copy.
func (u *Universe) Symbols() []string {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out
}

func (u *Universe) Len() int { return len(u.symbols) }

func (u *Universe) Contains(symbol string) bool {
	_, ok := u.index[strings.ToUpper(symbol)]
	return ok
}

// Subset returns the requested symbols in universe order, or ErrUnknownSymbol
// if any of them is not tracked.
func (u *Universe) Subset(symbols []string) ([]string, error) {
	want := New(symbols)
	for _, s := range want.symbols {
		if !u.Contains(s) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, s)
		}
	}
	out := make([]string, 0, want.Len())
	for _, s := range u.symbols {
		if want.Contains(s) {
			out = append(out, s)
		}
	}
	return out, nil
}
