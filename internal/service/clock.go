package service

import "time"

// Clock — источник текущего времени. В тестах подменяется управляемыми часами.
type Clock interface {
	Now() time.Time
}

// RealClock возвращает системное время в UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
