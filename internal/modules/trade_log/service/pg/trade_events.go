package pg

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"screener_bot/internal/models"
	"screener_bot/pkg/db"
)

const insertEventSQL = `
INSERT INTO trade_events (bot_id, position_id, event_type, symbol, timeframe, direction, ts, snapshot)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (bot_id, position_id, event_type) DO NOTHING`

// TradeEvents пишет события сделок в postgres; снапшот позиции — jsonb.
type TradeEvents struct {
	tm db.TxManager
}

func New(tm db.TxManager) *TradeEvents {
	return &TradeEvents{tm: tm}
}

func (t *TradeEvents) Record(ctx context.Context, ev models.TradeEvent) error {
	snapshot, err := sonic.Marshal(ev.Position)
	if err != nil {
		return errors.Wrap(err, "TradeEvents.Record: marshal snapshot")
	}

	err = t.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, execErr := tx.Exec(ctxTx, insertEventSQL,
			ev.BotID,
			ev.PositionID,
			string(ev.Type),
			ev.Symbol,
			ev.Timeframe,
			string(ev.Direction),
			ev.Ts,
			snapshot,
		)
		return execErr
	})
	if err != nil {
		return errors.Wrap(err, "TradeEvents.Record: insert")
	}
	return nil
}
