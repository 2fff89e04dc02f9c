package redis

// Redis key naming conventions for studio data.
// All keys are prefixed with "studio:" to avoid collisions.

const keyPrefix = "studio:"

// ── Job keys ──

// jobKey returns the Hash key for a job entity: studio:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// stateKey returns the Set key indexing jobs by state: studio:jobs:state:{state}
func stateKey(state string) string { return keyPrefix + "jobs:state:" + state }

// userJobsKey returns the List key of an owner's job ids, newest first:
// studio:user_jobs:{ownerID}
func userJobsKey(owner string) string { return keyPrefix + "user_jobs:" + owner }

// queueKey is the FIFO work queue List (RPUSH tail, LREM on leave).
const queueKey = keyPrefix + "queue"

// ── Error log keys ──

// errorKey returns the Hash key for an error-log entry: studio:error:{ref}
func errorKey(ref string) string { return keyPrefix + "error:" + ref }

// errorListKey is the List of error refs, newest first.
const errorListKey = keyPrefix + "errors"
