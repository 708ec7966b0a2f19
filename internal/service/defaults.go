package service

import "time"

const (
	fetchRPS = 50

	retryDelay = 5 * time.Second
	idleDelay  = 30 * time.Second
)
