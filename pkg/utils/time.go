package utils

import (
	"math"
	"sync"
	"time"
)

var (
	// 시간 함수 (테스트를 위해 오버라이드 가능)
	timeNow   = time.Now
	timeNowMu sync.RWMutex
)

// GetTimeNow는 현재 시간을 마이크로초 단위로 잘라서 반환합니다.
// 저장소에는 epoch 초(float)로 기록되므로 마이크로초 이하 정밀도는 버립니다.
func GetTimeNow() time.Time {
	timeNowMu.RLock()
	fn := timeNow
	timeNowMu.RUnlock()
	return fn().Truncate(time.Microsecond)
}

// SetTimeNow는 시간 함수를 설정합니다. (테스트용)
// 이전 시간 함수를 반환하므로 defer로 복원할 수 있습니다.
func SetTimeNow(fn func() time.Time) func() time.Time {
	timeNowMu.Lock()
	defer timeNowMu.Unlock()
	old := timeNow
	timeNow = fn
	return old
}

// EpochSeconds는 시간을 epoch 초(float)로 변환합니다.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// FromEpochSeconds는 epoch 초(float)를 시간으로 변환합니다.
func FromEpochSeconds(sec float64) time.Time {
	return time.UnixMicro(int64(math.Round(sec * 1e6))).UTC()
}

// EpochPtr는 nil 허용 시간을 nil 허용 epoch 초로 변환합니다.
func EpochPtr(t *time.Time) *float64 {
	if t == nil {
		return nil
	}
	sec := EpochSeconds(*t)
	return &sec
}
