package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// BatchModulePrefix 批量重评分模块
	BatchModulePrefix = "batch"
	// ExtractModulePrefix 特征抽取模块
	ExtractModulePrefix = "extract"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityProgress 进度快照实体
	EntityProgress = "progress"
	// EntityFeatures 抽取特征实体
	EntityFeatures = "features"

	// KeyBatchJobLock 同一岗位同一时间只允许一个批处理 (STRING)
	// 格式: app:batch:lock:{jobID}
	KeyBatchJobLock = AppPrefix + ":" + BatchModulePrefix + ":" + EntityLock + ":%s"

	// KeyBatchProgress 批处理进度快照 (STRING, JSON)
	// 格式: app:batch:progress:{runID}
	KeyBatchProgress = AppPrefix + ":" + BatchModulePrefix + ":" + EntityProgress + ":%s"

	// KeyExtractedFeatures 抽取结果缓存 (STRING, JSON)
	// 格式: app:extract:features:{sha256(text)}
	KeyExtractedFeatures = AppPrefix + ":" + ExtractModulePrefix + ":" + EntityFeatures + ":%s"
)
