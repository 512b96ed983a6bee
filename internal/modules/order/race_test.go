// README: Concurrency tests for the claim path and cancel-vs-advance races.
package order

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"mealdrop/internal/types"
)

func TestConcurrentClaimSingleWinner(t *testing.T) {
	svc := NewService(setupTestStore(t), nil)
	ctx := context.Background()

	o := mustCreateOrder(t, svc, "c_race")
	if _, err := svc.Transition(ctx, TransitionCommand{OrderID: o.ID, To: StatusConfirmed}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	const drivers = 8
	var wg sync.WaitGroup
	results := make([]error, drivers)
	winners := make([]types.ID, drivers)

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			driverID := types.ID(fmt.Sprintf("driver_%d", n))
			claimed, err := svc.Claim(ctx, o.ID, driverID)
			results[n] = err
			if err == nil {
				winners[n] = *claimed.DriverID
			}
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	var winner types.ID
	for i, err := range results {
		switch err {
		case nil:
			wins++
			winner = winners[i]
		case ErrAlreadyAssigned:
			conflicts++
		default:
			t.Errorf("driver %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
	if conflicts != drivers-1 {
		t.Fatalf("expected %d rejected claims, got %d", drivers-1, conflicts)
	}

	final, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != StatusOutForDelivery {
		t.Fatalf("final status = %s, want out_for_delivery", final.Status)
	}
	if final.DriverID == nil || *final.DriverID != winner {
		t.Fatalf("final driver = %v, want %s", final.DriverID, winner)
	}

	// create + confirm + exactly one claim
	history, err := svc.History(ctx, o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(history))
	}
}

func TestConcurrentCancelVsClaim(t *testing.T) {
	svc := NewService(setupTestStore(t), nil)
	ctx := context.Background()

	o := mustCreateOrder(t, svc, "c_tug")
	if _, err := svc.Transition(ctx, TransitionCommand{OrderID: o.ID, To: StatusConfirmed}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	var wg sync.WaitGroup
	var cancelErr, claimErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorID: "c_tug", Reason: "too slow"})
	}()
	go func() {
		defer wg.Done()
		_, claimErr = svc.Claim(ctx, o.ID, "d_tug")
	}()
	wg.Wait()

	cancelWon := cancelErr == nil
	claimWon := claimErr == nil
	if cancelWon == claimWon {
		t.Fatalf("exactly one side must win: cancel=%v claim=%v", cancelErr, claimErr)
	}

	final, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	history, err := svc.History(ctx, o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history[len(history)-1].Status != final.Status {
		t.Fatalf("ledger tail %s disagrees with status %s", history[len(history)-1].Status, final.Status)
	}

	switch {
	case cancelWon:
		if final.Status != StatusCancelled {
			t.Fatalf("cancel won but status = %s", final.Status)
		}
		if final.DriverID != nil {
			t.Fatal("cancelled order must not carry a driver")
		}
	case claimWon:
		if final.Status != StatusOutForDelivery {
			t.Fatalf("claim won but status = %s", final.Status)
		}
		if final.DriverID == nil || *final.DriverID != "d_tug" {
			t.Fatal("expected d_tug on the claimed order")
		}
	}
}
