package ledger

import (
	"context"
	"errors"
	"fmt"
)

// errRetry store 實作在 commit 偵測到衝突時回傳，交給 RunWithRetry 重跑
var errRetry = errors.New("retry transaction")

// Conflict 包裝 store 內部的衝突原因
func Conflict(cause error) error {
	if cause == nil {
		return errRetry
	}
	return fmt.Errorf("%w: %v", errRetry, cause)
}

func IsConflict(err error) bool {
	return errors.Is(err, errRetry) || errors.Is(err, ErrTxnConflict)
}

// Unavailable 包裝基礎設施錯誤
func Unavailable(cause error) error {
	if cause == nil || errors.Is(cause, ErrStoreUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
}

/*
RunWithRetry 交易重跑邏輯，各 store 共用

	attempt 回傳:
		- nil: commit 成功
		- Conflict(...): 重跑
		- 其他錯誤: 直接回傳
*/
func RunWithRetry(ctx context.Context, maxAttempts int, attempt func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return Unavailable(err)
		}

		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errRetry) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrTxnConflict, maxAttempts, lastErr)
}
