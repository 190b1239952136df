package store

import (
	"testing"
	"time"
)

func TestBudgetLimiterAllowsUnderThreshold(t *testing.T) {
	b := newBudgetLimiter()
	b.Record(2 * time.Second)
	if !b.Allow() {
		t.Error("expected budget to still allow reads under threshold")
	}
}

func TestBudgetLimiterBlocksOverThreshold(t *testing.T) {
	b := newBudgetLimiter()
	b.Record(9 * time.Second)
	if b.Allow() {
		t.Error("expected budget to reject reads once threshold exceeded")
	}
}

func TestBudgetLimiterRotatesOldBuckets(t *testing.T) {
	b := newBudgetLimiter()
	b.Record(9 * time.Second)
	b.bucketSec -= budgetBuckets + 1 // simulate the window having fully elapsed
	if !b.Allow() {
		t.Error("expected old usage to roll off after the window elapses")
	}
}
