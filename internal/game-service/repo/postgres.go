package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/aviator-game-core/internal/game-service/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id    BIGINT PRIMARY KEY,
	balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL,
	delta         BIGINT NOT NULL,
	balance_after BIGINT NOT NULL,
	reason        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rounds (
	id              UUID PRIMARY KEY,
	status          VARCHAR(20) NOT NULL,
	result          NUMERIC(12,2),
	created_at      TIMESTAMPTZ NOT NULL,
	betting_ends_at TIMESTAMPTZ NOT NULL,
	round_ends_at   TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ
);

-- no máximo uma rodada em betting/counting
CREATE UNIQUE INDEX IF NOT EXISTS rounds_single_active
	ON rounds ((true)) WHERE status IN ('betting', 'counting');

CREATE TABLE IF NOT EXISTS bets (
	id           UUID PRIMARY KEY,
	user_id      BIGINT NOT NULL,
	round_id     UUID NOT NULL REFERENCES rounds(id),
	amount       BIGINT NOT NULL CHECK (amount > 0),
	status       VARCHAR(20) NOT NULL,
	payout       BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS bets_single_active
	ON bets (user_id, round_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS bets_round_idx ON bets (round_id);
`

// Postgres implementa ledger, rodadas e apostas em banco.
// Cada operação é uma transação curta sobre o pool do *sql.DB.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate cria as tabelas e índices se ainda não existirem
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping valida a conexão (healthz)
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Balance retorna o saldo; usuário inexistente tem saldo 0
func (p *Postgres) Balance(ctx context.Context, userID int64) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE user_id=$1`, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

// Adjust aplica delta ao saldo com guarda de não-negatividade numa única instrução
func (p *Postgres) Adjust(ctx context.Context, userID int64, delta int64, reason string) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	bal, err := adjustTx(ctx, tx, userID, delta, reason)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return bal, nil
}

// adjustTx: créditos fazem upsert do usuário; débitos só passam se o saldo cobrir
func adjustTx(ctx context.Context, tx *sql.Tx, userID int64, delta int64, reason string) (int64, error) {
	var bal int64
	var err error
	if delta >= 0 {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO users (user_id, balance) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET balance = users.balance + EXCLUDED.balance
			RETURNING balance`, userID, delta).Scan(&bal)
	} else {
		err = tx.QueryRowContext(ctx, `
			UPDATE users SET balance = balance + $1
			WHERE user_id = $2 AND balance + $1 >= 0
			RETURNING balance`, delta, userID).Scan(&bal)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrInsufficientBalance
		}
	}
	if err != nil {
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (user_id, delta, balance_after, reason) VALUES ($1,$2,$3,$4)`,
		userID, delta, bal, reason); err != nil {
		return 0, err
	}
	return bal, nil
}

// Register cadastra o usuário com saldo zero; devolve false se ele já existia
func (p *Postgres) Register(ctx context.Context, userID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO users (user_id, balance) VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Stats agrega saldos de todos os usuários, exceto a conta informada
func (p *Postgres) Stats(ctx context.Context, exclude int64) (domain.Stats, error) {
	var st domain.Stats
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(balance),0), COALESCE(MAX(balance),0), COALESCE(MIN(balance),0)
		FROM users WHERE user_id <> $1`, exclude).
		Scan(&st.TotalUsers, &st.TotalPoints, &st.MaxBalance, &st.MinBalance)
	return st, err
}

// CreateRound insere a rodada já em betting; o índice parcial recusa uma segunda ativa
func (p *Postgres) CreateRound(ctx context.Context, r domain.Round) (domain.Round, error) {
	r.ID = uuid.NewString()
	r.Status = domain.RoundBetting
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rounds (id, status, created_at, betting_ends_at, round_ends_at)
		VALUES ($1,$2,$3,$4,$5)`,
		r.ID, r.Status, r.CreatedAt, r.BettingEndsAt, r.RoundEndsAt)
	if isUniqueViolation(err) {
		return domain.Round{}, domain.ErrActiveRoundExists
	}
	if err != nil {
		return domain.Round{}, err
	}
	return r, nil
}

// UpdateRoundResult grava o resultado uma única vez, move a rodada para counting
// e devolve o resultado efetivamente persistido.
// O lock de linha do UPDATE espera apostas em voo (FOR SHARE) terminarem.
func (p *Postgres) UpdateRoundResult(ctx context.Context, id string, result decimal.Decimal) (decimal.Decimal, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `
		UPDATE rounds SET result=$1, status='counting'
		WHERE id=$2 AND result IS NULL`, result, id); err != nil {
		return decimal.Decimal{}, err
	}

	var stored decimal.NullDecimal
	err = tx.QueryRowContext(ctx, `SELECT result FROM rounds WHERE id=$1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, domain.ErrNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err = tx.Commit(); err != nil {
		return decimal.Decimal{}, err
	}
	return stored.Decimal, nil
}

func (p *Postgres) FinishRound(ctx context.Context, id string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE rounds SET status='finished', finished_at=$1
		WHERE id=$2 AND status <> 'finished'`, at, id)
	return err
}

const roundColumns = `id, status, result, created_at, betting_ends_at, round_ends_at, finished_at`

func scanRound(row interface{ Scan(...any) error }) (domain.Round, error) {
	var r domain.Round
	var status string
	var result decimal.NullDecimal
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &status, &result, &r.CreatedAt, &r.BettingEndsAt, &r.RoundEndsAt, &finished); err != nil {
		return domain.Round{}, err
	}
	r.Status = domain.RoundStatus(status)
	if result.Valid {
		res := result.Decimal
		r.Result = &res
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, nil
}

// ActiveRound devolve a rodada em betting/counting, se houver (recuperação após restart)
func (p *Postgres) ActiveRound(ctx context.Context) (domain.Round, bool, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM rounds WHERE status IN ('betting','counting') LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Round{}, false, nil
	}
	if err != nil {
		return domain.Round{}, false, err
	}
	return r, true, nil
}

func (p *Postgres) GetRound(ctx context.Context, id string) (domain.Round, error) {
	r, err := scanRound(p.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Round{}, domain.ErrNotFound
	}
	return r, err
}

// PlaceBet debita o saldo e cria a aposta na mesma transação.
// commitCheck roda imediatamente antes do commit (revalidação da janela).
func (p *Postgres) PlaceBet(ctx context.Context, b domain.Bet, debit bool, commitCheck func() error) (domain.Bet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bet{}, err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM rounds WHERE id=$1 FOR SHARE`, b.RoundID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && status != string(domain.RoundBetting)) {
		return domain.Bet{}, domain.ErrRoundNotOpen
	}
	if err != nil {
		return domain.Bet{}, err
	}

	b.ID = uuid.NewString()
	b.Status = domain.BetActive
	b.Payout = 0
	if debit {
		if _, err = adjustTx(ctx, tx, b.UserID, -b.Amount, "bet:"+b.ID); err != nil {
			return domain.Bet{}, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, round_id, amount, status, payout, created_at)
		VALUES ($1,$2,$3,$4,'active',0,$5)`,
		b.ID, b.UserID, b.RoundID, b.Amount, b.CreatedAt)
	if isUniqueViolation(err) {
		return domain.Bet{}, domain.ErrDuplicateActiveBet
	}
	if err != nil {
		return domain.Bet{}, err
	}

	if commitCheck != nil {
		if err = commitCheck(); err != nil {
			return domain.Bet{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return domain.Bet{}, err
	}
	return b, nil
}

const betColumns = `id, user_id, round_id, amount, status, payout, created_at, completed_at`

func scanBet(row interface{ Scan(...any) error }) (domain.Bet, error) {
	var b domain.Bet
	var status string
	var completed sql.NullTime
	if err := row.Scan(&b.ID, &b.UserID, &b.RoundID, &b.Amount, &status, &b.Payout, &b.CreatedAt, &completed); err != nil {
		return domain.Bet{}, err
	}
	b.Status = domain.BetStatus(status)
	if completed.Valid {
		b.CompletedAt = &completed.Time
	}
	return b, nil
}

func (p *Postgres) ActiveBet(ctx context.Context, userID int64, roundID string) (domain.Bet, bool, error) {
	b, err := scanBet(p.db.QueryRowContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE user_id=$1 AND round_id=$2 AND status='active'`, userID, roundID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, false, nil
	}
	if err != nil {
		return domain.Bet{}, false, err
	}
	return b, true, nil
}

func (p *Postgres) ListBets(ctx context.Context, roundID string) ([]domain.Bet, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE round_id=$1 ORDER BY created_at`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CompleteBet conclui a aposta e credita o payout na mesma transação.
// Idempotente: se já estiver completed, não faz nada e devolve false.
func (p *Postgres) CompleteBet(ctx context.Context, betID string, payout int64, credit bool, at time.Time) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE bets SET status='completed', payout=$1, completed_at=$2
		WHERE id=$3 AND status='active'
		RETURNING user_id`, payout, at, betID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bets WHERE id=$1)`, betID).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if credit && payout > 0 {
		if _, err = adjustTx(ctx, tx, userID, payout, "payout:"+betID); err != nil {
			return false, err
		}
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
