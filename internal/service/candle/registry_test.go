package candle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	"github.com/buckstrdr/candlestream/internal/domain/repository"
)

func testKey(inst string, tf repository.Timeframe) key {
	return key{Instrument: inst, Timeframe: tf}
}

func TestRegistryNotifyDeliversToAllSubscribers(t *testing.T) {
	r := NewRegistry(nil)
	k := testKey("BTCUSDT", repository.TF1m)

	var got1, got2 []models.Candlestick
	r.Subscribe("BTCUSDT", repository.TF1m, func(c models.Candlestick) error {
		got1 = append(got1, c)
		return nil
	})
	r.Subscribe("BTCUSDT", repository.TF1m, func(c models.Candlestick) error {
		got2 = append(got2, c)
		return nil
	})

	r.Notify(k, models.Candlestick{Instrument: "BTCUSDT", Timeframe: "1m", Close: 7})

	require.Len(t, got1, 1)
	require.Len(t, got2, 1)
	assert.Equal(t, 7.0, got1[0].Close)
}

func TestRegistryNotifyIsKeyScoped(t *testing.T) {
	r := NewRegistry(nil)

	var calls int
	r.Subscribe("BTCUSDT", repository.TF5m, func(models.Candlestick) error {
		calls++
		return nil
	})

	r.Notify(testKey("BTCUSDT", repository.TF1m), models.Candlestick{})
	r.Notify(testKey("ETHUSDT", repository.TF5m), models.Candlestick{})
	assert.Zero(t, calls)

	r.Notify(testKey("BTCUSDT", repository.TF5m), models.Candlestick{})
	assert.Equal(t, 1, calls)
}

func TestRegistryErroringCallbackDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(nil)
	k := testKey("BTCUSDT", repository.TF1m)

	var delivered int
	r.Subscribe("BTCUSDT", repository.TF1m, func(models.Candlestick) error {
		return errors.New("subscriber down")
	})
	r.Subscribe("BTCUSDT", repository.TF1m, func(models.Candlestick) error {
		delivered++
		return nil
	})

	r.Notify(k, models.Candlestick{})
	assert.Equal(t, 1, delivered)
}

func TestRegistryPanickingCallbackIsContained(t *testing.T) {
	r := NewRegistry(nil)
	k := testKey("BTCUSDT", repository.TF1m)

	var delivered int
	r.Subscribe("BTCUSDT", repository.TF1m, func(models.Candlestick) error {
		panic("boom")
	})
	r.Subscribe("BTCUSDT", repository.TF1m, func(models.Candlestick) error {
		delivered++
		return nil
	})

	assert.NotPanics(t, func() { r.Notify(k, models.Candlestick{}) })
	assert.Equal(t, 1, delivered)
}

func TestRegistryUnsubscribeStopsDelivery(t *testing.T) {
	r := NewRegistry(nil)
	k := testKey("BTCUSDT", repository.TF1m)

	var calls int
	sub := r.Subscribe("BTCUSDT", repository.TF1m, func(models.Candlestick) error {
		calls++
		return nil
	})

	r.Notify(k, models.Candlestick{})
	sub.Unsubscribe()
	r.Notify(k, models.Candlestick{})

	assert.Equal(t, 1, calls)
	assert.Zero(t, r.Count())

	// Idempotent.
	assert.NotPanics(t, sub.Unsubscribe)
}

func TestRegistryClearInstrument(t *testing.T) {
	r := NewRegistry(nil)
	r.Subscribe("BTCUSDT", repository.TF1m, func(models.Candlestick) error { return nil })
	r.Subscribe("BTCUSDT", repository.TF5m, func(models.Candlestick) error { return nil })
	r.Subscribe("ETHUSDT", repository.TF1m, func(models.Candlestick) error { return nil })

	r.ClearInstrument("BTCUSDT")
	assert.Equal(t, 1, r.Count())

	r.Clear()
	assert.Zero(t, r.Count())
}
