package dagger

import "time"

type ResolveHook func(key string, duration time.Duration, err error)
