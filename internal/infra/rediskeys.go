package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "retention"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanModelChanges: изменения моделей хранения (create/update/delete).
	RedisChanModelChanges = RedisNamespace + ":retention-models"
	// RedisChanPolicyChanges: изменения политик хранения.
	RedisChanPolicyChanges = RedisNamespace + ":retention-policies"
)
