// Command bankdemo drives the stage runtime under load: it opens a number
// of accounts under a Bank actor and issues randomized deposits and
// withdrawals, reporting totals and runtime stats at the end.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewandler/stage-go/core/deadletter"
	"github.com/codewandler/stage-go/core/stage"
)

// Account holds a single balance.
type Account struct {
	stage.Base
	balance int64
}

func (a *Account) Deposit(amount int64) int64 {
	a.balance += amount
	return a.balance
}

func (a *Account) Withdraw(amount int64) (int64, error) {
	if amount > a.balance {
		return 0, fmt.Errorf("overdraft: balance %d, requested %d", a.balance, amount)
	}
	a.balance -= amount
	return a.balance, nil
}

func (a *Account) Balance() int64 { return a.balance }

var accountProto = stage.NewProtocol("Account", func(def stage.Definition) (stage.Behavior, error) {
	return &Account{}, nil
})

type options struct {
	accounts int
	ops      int
	verbose  bool
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "bankdemo",
		Short: "Exercise the stage actor runtime with a banking workload",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
		},
	}
	rootCmd.PersistentFlags().IntVarP(&opts.accounts, "accounts", "a", 100, "The number of account actors to spawn")
	rootCmd.PersistentFlags().IntVarP(&opts.ops, "ops", "n", 10_000, "The total number of operations to issue")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Increase output logging verbosity to DEBUG level")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	st := stage.New(stage.Options{Name: "bankdemo", Logger: log})
	defer st.Close()

	letters := deadletter.NewCapturing()
	st.DeadLetters().Subscribe(letters)

	accounts := make([]*stage.Proxy, opts.accounts)
	for i := range accounts {
		p, err := st.ActorFor(accountProto)
		if err != nil {
			return err
		}
		accounts[i] = p
	}

	ctx := context.Background()
	start := time.Now()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		overdrafts int
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < opts.ops/8; i++ {
				account := accounts[rng.Intn(len(accounts))]
				amount := int64(rng.Intn(100) + 1)
				if rng.Intn(4) == 0 {
					if _, err := stage.Ask[int64](ctx, account, "Withdraw", amount); err != nil {
						mu.Lock()
						overdrafts++
						mu.Unlock()
					}
				} else {
					if _, err := stage.Ask[int64](ctx, account, "Deposit", amount); err != nil {
						return
					}
				}
			}
		}(int64(w))
	}
	wg.Wait()
	elapsed := time.Since(start)

	var total int64
	for _, account := range accounts {
		balance, err := stage.Ask[int64](ctx, account, "Balance")
		if err != nil {
			return err
		}
		total += balance
	}

	stats := st.Stats()
	fmt.Printf("accounts:      %d\n", opts.accounts)
	fmt.Printf("operations:    %d in %s (%.0f ops/s)\n",
		opts.ops, elapsed.Round(time.Millisecond), float64(opts.ops)/elapsed.Seconds())
	fmt.Printf("overdrafts:    %d (each restarted the account)\n", overdrafts)
	fmt.Printf("total balance: %d\n", total)
	fmt.Printf("live actors:   %d over %d buckets\n", stats.Actors, len(stats.Distribution))
	fmt.Printf("dead letters:  %d\n", letters.Len())
	return nil
}
