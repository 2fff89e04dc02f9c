// Package redis implements store.Store on Redis. Jobs are Hashes indexed by
// per-state Sets, per-owner Lists and a FIFO work-queue List. Error-log
// entries are Hashes referenced from a capped List.
//
// Job updates run under WATCH/MULTI: the hash is read, the patch applied,
// and the write committed only if nobody touched the job meanwhile.
//
// The caller owns the client lifecycle; Close never closes it:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
