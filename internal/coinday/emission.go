package coinday

import "math/big"

// SealEpochs closes out every emission epoch that elapsed since the grid
// timestamp and appends exactly one award for the whole period. The
// per-epoch amount decays by 1% per elapsed epoch with truncating division,
// and the grid advances by whole intervals, never to "now", so the cadence
// stays fixed. Nothing is mutated when the interval has not elapsed or the
// aggregate coin-day total would be unusable.
func (e *Engine) SealEpochs(now uint64) (Award, uint32, error) {
	daily, gridTime := e.ledger.DailyAward()
	epochs := elapsed(gridTime, now) / e.epochInterval
	if epochs == 0 {
		return Award{}, 0, ErrIntervalTooShort
	}
	newGridTime := gridTime + epochs*e.epochInterval

	period := new(big.Int)
	amount := new(big.Int).Set(daily)
	for i := uint64(0); i < epochs; i++ {
		period.Add(period, amount)
		amount.Mul(amount, decayNumerator)
		amount.Quo(amount, decayDenominator)
	}

	// Pre-validate the aggregate total so a refused append cannot leave the
	// grid half advanced.
	if e.rolledTotal(now).Sign() <= 0 {
		return Award{}, 0, ErrZeroTotalCoinday
	}

	if err := e.ledger.UpdateDailyAward(e.caller, amount, newGridTime); err != nil {
		return Award{}, 0, err
	}
	return e.Emit(now, period)
}

// Emit rolls the aggregate tracker to now, adds amount to the stream's
// running total reward, and seals one award carrying the new total.
// SealEpochs funnels through here; it is also the entry point for awards
// whose amount is computed outside the decay schedule, such as issuance
// rewards reported by the stable token.
func (e *Engine) Emit(now uint64, amount *big.Int) (Award, uint32, error) {
	newTotal := e.rolledTotal(now)
	if newTotal.Sign() <= 0 {
		return Award{}, 0, ErrZeroTotalCoinday
	}

	oldReward := e.ledger.TotalReward()
	if err := e.ledger.UpdateTotalReward(e.caller, oldReward.Add(oldReward, amount)); err != nil {
		return Award{}, 0, err
	}
	if err := e.ledger.UpdateTotalCoinday(e.caller, newTotal, now); err != nil {
		return Award{}, 0, err
	}
	index, err := e.ledger.AppendAward(e.caller, amount, newTotal, now)
	if err != nil {
		return Award{}, 0, err
	}
	return Award{Amount: amount, TotalCoinday: newTotal, Timestamp: now}, index, nil
}

// RealignDailyAward moves the emission grid start to now. Called on the
// first ever mint: before any supply exists no coin-days can accrue, so the
// schedule begins counting from the moment the first tokens appear.
func (e *Engine) RealignDailyAward(now uint64) error {
	daily, gridTime := e.ledger.DailyAward()
	if gridTime != e.ledger.DeployTime() {
		return nil
	}
	return e.ledger.UpdateDailyAward(e.caller, daily, now)
}
