package config

// DefaultSeeds are the wiki entry points crawled by update_content when
// CRAWL_SEEDS is not set.
var DefaultSeeds = []string{
	"/index.php?title=Main_Page",
	"/index.php?title=Blocks",
	"/index.php?title=Items",
	"/index.php?title=Crafting",
	"/index.php?title=Getting_Started",
	"/index.php?title=Knapping",
	"/index.php?title=Clay_forming",
}

const (
	// AppDirName is the directory created under the user data dir.
	AppDirName = "vintage-story-ai-assistant"

	// StoreDirName holds the durable vector store.
	StoreDirName = "vector_db"

	// StoreFileName is the bbolt file inside StoreDirName.
	StoreFileName = "records.db"
)
