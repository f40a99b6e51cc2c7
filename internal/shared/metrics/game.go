package metrics

import "github.com/prometheus/client_golang/prometheus"

// Game reúne os contadores do ciclo de rodadas e apostas
type Game struct {
	RoundsStarted   prometheus.Counter
	RoundsSettled   prometheus.Counter
	BetsPlaced      prometheus.Counter
	BetsRejected    *prometheus.CounterVec // por reason code
	PayoutsTotal    prometheus.Counter     // soma dos créditos pagos
	SchedulerErrors *prometheus.CounterVec // por estágio do tick
}

// NewGame cria e registra os contadores no registry informado
func NewGame(reg prometheus.Registerer) *Game {
	g := &Game{
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{Name: "game_rounds_started_total", Help: "rodadas abertas"}),
		RoundsSettled: prometheus.NewCounter(prometheus.CounterOpts{Name: "game_rounds_settled_total", Help: "rodadas liquidadas"}),
		BetsPlaced:    prometheus.NewCounter(prometheus.CounterOpts{Name: "game_bets_placed_total", Help: "apostas aceitas"}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_bets_rejected_total", Help: "apostas rejeitadas por motivo",
		}, []string{"code"}),
		PayoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{Name: "game_payouts_total", Help: "pontos creditados em liquidações"}),
		SchedulerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_scheduler_errors_total", Help: "erros do scheduler por estágio",
		}, []string{"stage"}),
	}
	reg.MustRegister(g.RoundsStarted, g.RoundsSettled, g.BetsPlaced, g.BetsRejected, g.PayoutsTotal, g.SchedulerErrors)
	return g
}
