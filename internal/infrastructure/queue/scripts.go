package queue

import "github.com/redis/go-redis/v9"

// promoteDueLua moves delayed jobs whose due time passed back to the wait list.
// It expects KEYS[1]=wait KEYS[2]=delayed, ARGV[1]=now ms, ARGV[2]=job key prefix.
const promoteDueLua = `
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', '0', '500')
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('LPUSH', KEYS[1], id)
  redis.call('HSET', ARGV[2] .. id, 'status', 'waiting')
end
`

var promoteScript = redis.NewScript(promoteDueLua + `
return #due
`)

// KEYS: wait, delayed, active. ARGV: now ms, job key prefix, lease deadline ms.
var reserveScript = redis.NewScript(promoteDueLua + `
while true do
  local id = redis.call('RPOP', KEYS[1])
  if not id then
    return false
  end
  local key = ARGV[2] .. id
  if redis.call('EXISTS', key) == 1 then
    redis.call('ZADD', KEYS[3], ARGV[3], id)
    redis.call('HINCRBY', key, 'attempts', 1)
    redis.call('HSET', key, 'status', 'active')
    local fields = redis.call('HGETALL', key)
    table.insert(fields, 'id')
    table.insert(fields, id)
    return fields
  end
end
`)

// KEYS: active, job key. ARGV: id, attempt token, retention seconds, now ms.
var ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], 'attempts') ~= ARGV[2] then
  return 0
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('HSET', KEYS[2], 'status', 'completed', 'finished_at', ARGV[4])
  redis.call('EXPIRE', KEYS[2], ttl)
else
  redis.call('DEL', KEYS[2])
end
return 1
`)

// KEYS: active, delayed, failed, job key.
// ARGV: id, attempt token, now ms, due ms, last error.
// Returns -1 when the lease was lost, 1 when the job is dead, 0 when delayed.
var nackScript = redis.NewScript(`
if redis.call('HGET', KEYS[4], 'attempts') ~= ARGV[2] then
  return -1
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return -1
end
local attempts = tonumber(redis.call('HGET', KEYS[4], 'attempts'))
local max = tonumber(redis.call('HGET', KEYS[4], 'max_attempts'))
redis.call('HSET', KEYS[4], 'last_error', ARGV[5])
if attempts >= max then
  redis.call('HSET', KEYS[4], 'status', 'failed', 'failed_at', ARGV[3])
  redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
  return 1
end
redis.call('HSET', KEYS[4], 'status', 'delayed')
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
return 0
`)

// KEYS: active, wait, failed. ARGV: now ms, job key prefix, error text.
// Returns {requeued, deadID...}.
var requeueExpiredScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', '0', '500')
local result = {0}
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[1], id)
  local key = ARGV[2] .. id
  if redis.call('EXISTS', key) == 1 then
    local attempts = tonumber(redis.call('HGET', key, 'attempts') or '0')
    local max = tonumber(redis.call('HGET', key, 'max_attempts') or '0')
    if attempts >= max then
      redis.call('HSET', key, 'status', 'failed', 'failed_at', ARGV[1], 'last_error', ARGV[3])
      redis.call('ZADD', KEYS[3], ARGV[1], id)
      table.insert(result, id)
    else
      redis.call('HSET', key, 'status', 'waiting')
      redis.call('LPUSH', KEYS[2], id)
      result[1] = result[1] + 1
    end
  end
end
return result
`)
