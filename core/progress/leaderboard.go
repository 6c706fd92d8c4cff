package progress

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
)

type (
	Standing struct {
		Rank        int    `json:"rank"`
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoURL,omitempty"`
		XP          Points `json:"xp"`
		Streak      int    `json:"streak"`
	}

	// Leaderboard lists the top users by xp. ViewerRank is Limit+1 when the viewer is not listed.
	Leaderboard struct {
		Standings  []Standing `json:"standings"`
		ViewerRank int        `json:"viewerRank"`
		Limit      int        `json:"limit"`
	}
)

func (l *Ledger) Leaderboard(ctx context.Context, viewerID string) (Leaderboard, error) {
	ranker, ok := l.store.(core.DocumentRanker)
	if !ok {
		return Leaderboard{}, core.ErrRankingUnsupported
	}
	docs, err := ranker.Rank(ctx, l.collection, FieldXP, l.limit)
	if err != nil {
		return Leaderboard{}, errors.Wrap(err, "ranking users")
	}
	recs, err := decodeRecords(docs)
	if err != nil {
		return Leaderboard{}, err
	}

	board := Leaderboard{
		Standings:  make([]Standing, 0, len(recs)),
		ViewerRank: l.limit + 1,
		Limit:      l.limit,
	}
	for i, rec := range recs {
		name := rec.DisplayName
		if name == "" {
			name = "Anonymous"
		}
		board.Standings = append(board.Standings, Standing{
			Rank:        i + 1,
			UserID:      rec.ID,
			DisplayName: name,
			PhotoURL:    rec.PhotoURL,
			XP:          rec.XP.OrZero(),
			Streak:      rec.Streak,
		})
		if rec.ID == viewerID {
			board.ViewerRank = i + 1
		}
	}
	return board, nil
}
