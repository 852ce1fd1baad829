package main

import (
	"context"
	"flag"
	"log"
	"time"

	"quickexpert/simulator"
)

func main() {
	config := simulator.SimConfig{}
	flag.IntVar(&config.NumUsers, "users", 10, "number of simulated users")
	flag.DurationVar(&config.SimulationTime, "duration", 2*time.Minute, "how long to run")
	flag.Float64Var(&config.MessageRate, "messages", 6, "messages per user per minute")
	flag.Float64Var(&config.ReadRate, "reads", 3, "conversation reads per user per minute")
	flag.Float64Var(&config.UnreadPollRate, "polls", 6, "unread polls per user per minute")
	flag.Float64Var(&config.DisconnectRate, "disconnect", 0.01, "per-second sign-out probability")
	flag.Float64Var(&config.ReconnectRate, "reconnect", 0.05, "per-second sign-in probability")
	flag.Float64Var(&config.ZipfS, "zipf", 1.07, "Zipf exponent for receiver popularity")
	flag.StringVar(&config.EngineURL, "url", "http://localhost:8080", "engine base URL")
	flag.Parse()

	sim := simulator.NewEnhancedSimulator(config)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	log.Printf("Starting simulation with configuration:")
	log.Printf("- Engine URL: %s", config.EngineURL)
	log.Printf("- Number of users: %d", config.NumUsers)
	log.Printf("- Simulation time: %v", config.SimulationTime)
	log.Printf("- Message rate: %.2f messages/user/minute", config.MessageRate)
	log.Printf("- Disconnect rate: %.2f", config.DisconnectRate)
	log.Printf("- Reconnect rate: %.2f", config.ReconnectRate)
	log.Printf("- Zipf parameter: %.2f", config.ZipfS)

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	metrics := sim.GetMetrics()
	log.Printf("Simulation completed. Final metrics:")
	log.Printf("- Total users: %d", metrics.TotalUsers)
	log.Printf("- Active users at end: %d", metrics.ActiveUsers)
	log.Printf("- Messages sent: %d", metrics.MessagesSent)
	log.Printf("- Conversations read: %d", metrics.ConversationsRead)
	log.Printf("- Unread polls: %d", metrics.UnreadPolls)
	log.Printf("- Average latency: %v", metrics.AverageLatency)
	log.Printf("- Error count: %d", metrics.ErrorCount)
}
