package core

// Script is an atomic scripted sequence. Name identifies the script for
// executors that implement it natively; Source is the Lua body run by
// scripting-capable stores.
type Script struct {
	Name   string
	Source string
}

// DrainAllScript reads the whole list and empties it.
// KEYS[1] list. Returns the removed elements head first.
var DrainAllScript = Script{
	Name: "drain_all",
	Source: "local vals = redis.call('lrange', KEYS[1], 0, -1); " +
		"redis.call('ltrim', KEYS[1], -1, 0); " +
		"return vals",
}

// DrainBoundedScript removes up to ARGV[1] elements from the head.
// The upper index is min(ARGV[1], llen) - 1.
var DrainBoundedScript = Script{
	Name: "drain_bounded",
	Source: "local elemNum = math.min(tonumber(ARGV[1]), redis.call('llen', KEYS[1])) - 1; " +
		"local vals = redis.call('lrange', KEYS[1], 0, elemNum); " +
		"redis.call('ltrim', KEYS[1], elemNum + 1, -1); " +
		"return vals",
}

// PollAnyScript pops one element from the first non-empty key, in KEYS order,
// without blocking. ARGV[1] is "lpop" or "rpop". Returns {key, value} or nil.
var PollAnyScript = Script{
	Name: "poll_any",
	Source: "for i = 1, #KEYS do " +
		"local v = redis.call(ARGV[1], KEYS[i]); " +
		"if v then return {KEYS[i], v} end " +
		"end; " +
		"return false",
}

// RequeueTailScript moves every element of KEYS[1] to the tail of KEYS[2],
// popping from the head of KEYS[1]. The tail element of KEYS[1] ends up as
// the tail of KEYS[2]. Returns the number moved.
var RequeueTailScript = Script{
	Name: "requeue_tail",
	Source: "local n = 0; " +
		"local v = redis.call('lpop', KEYS[1]); " +
		"while v do " +
		"redis.call('rpush', KEYS[2], v); " +
		"n = n + 1; " +
		"v = redis.call('lpop', KEYS[1]) " +
		"end; " +
		"return n",
}
