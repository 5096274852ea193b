package helpers

import (
	"context"
	"math"
	"time"
)

func IsContextDone(ctx context.Context) bool {
	if ctx == nil {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
	}
	return false
}

// Sleep пауза с учетом контекста, false - контекст завершен
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !IsContextDone(ctx)
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Round округление до places знаков после запятой (половина - от нуля)
func Round(value float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(value*pow) / pow
}

func FloatPtr(value float64) *float64 {
	return &value
}

func StringPtr(value string) *string {
	return &value
}

func FloatValue(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
