package command

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeclock_commands_total",
		Help: "Commands dispatched, by operation name.",
	}, []string{"command"})

	commandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeclock_command_errors_total",
		Help: "Commands that resolved to an error reply, by operation name.",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(commandsTotal, commandErrors)
}
