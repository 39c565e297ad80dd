package gradletest

// Kind is how the simulated engine treats a task.
type Kind int

const (
	// Cacheable tasks are looked up in and pushed to the build cache.
	Cacheable Kind = iota
	// NonCacheable tasks always run.
	NonCacheable
	// NoActions tasks are lifecycle tasks reported UP-TO-DATE.
	NoActions
	// NoSource tasks have no inputs and are reported NO-SOURCE.
	NoSource
)

// Input groups a task can read from the project tree.
const (
	Sources  = "sources"
	Manifest = "manifest"
	Build    = "build"
)

// Task is one node of the simulated task graph.
type Task struct {
	ID        string
	Kind      Kind
	Inputs    []string
	DependsOn []string
}

// AssembleDebug approximates the task graph of an Android application's
// assembleDebug with the Hilt bytecode transform. Its cacheable tasks are
// exactly the ones the default scenario expects from the cache.
var AssembleDebug = []Task{
	{ID: ":preBuild", Kind: NoActions},
	{ID: ":preDebugBuild", Kind: NoActions, DependsOn: []string{":preBuild"}},
	{ID: ":compileDebugAidl", Kind: NoSource},
	{ID: ":compileDebugRenderscript", Kind: NoSource},
	{ID: ":generateDebugBuildConfig", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":javaPreCompileDebug", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":checkDebugAarMetadata", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":generateDebugResValues", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":generateDebugResources", Kind: NoActions, DependsOn: []string{":generateDebugResValues"}},
	{ID: ":mergeDebugResources", Kind: NonCacheable, Inputs: []string{Build}, DependsOn: []string{":generateDebugResValues"}},
	{ID: ":createDebugCompatibleScreenManifests", Kind: NonCacheable, Inputs: []string{Build}},
	{ID: ":extractDeepLinksDebug", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":processDebugMainManifest", Kind: NonCacheable, Inputs: []string{Manifest, Build}},
	{ID: ":processDebugManifest", Kind: NonCacheable, DependsOn: []string{":processDebugMainManifest"}},
	{ID: ":processDebugManifestForPackage", Kind: Cacheable, DependsOn: []string{":processDebugManifest"}},
	{ID: ":processDebugResources", Kind: NonCacheable, DependsOn: []string{":mergeDebugResources", ":processDebugManifestForPackage"}},
	{ID: ":compileDebugJavaWithJavac", Kind: Cacheable, Inputs: []string{Sources, Build},
		DependsOn: []string{":generateDebugBuildConfig", ":javaPreCompileDebug", ":processDebugResources"}},
	{ID: ":compileDebugSources", Kind: NoActions, DependsOn: []string{":compileDebugJavaWithJavac"}},
	{ID: ":mergeDebugNativeDebugMetadata", Kind: NoSource},
	{ID: ":mergeDebugShaders", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":compileDebugShaders", Kind: NoSource},
	{ID: ":generateDebugAssets", Kind: NoActions},
	{ID: ":mergeDebugAssets", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":compressDebugAssets", Kind: Cacheable, DependsOn: []string{":mergeDebugAssets"}},
	{ID: ":transformDebugClassesWithAsm", Kind: Cacheable, DependsOn: []string{":compileDebugJavaWithJavac"}},
	{ID: ":dexBuilderDebug", Kind: NonCacheable, DependsOn: []string{":transformDebugClassesWithAsm"}},
	{ID: ":checkDebugDuplicateClasses", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":desugarDebugFileDependencies", Kind: NonCacheable, Inputs: []string{Build}},
	{ID: ":mergeExtDexDebug", Kind: Cacheable, DependsOn: []string{":desugarDebugFileDependencies"}},
	{ID: ":mergeLibDexDebug", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":mergeProjectDexDebug", Kind: Cacheable, DependsOn: []string{":dexBuilderDebug"}},
	{ID: ":mergeDebugJniLibFolders", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":mergeDebugNativeLibs", Kind: Cacheable, DependsOn: []string{":mergeDebugJniLibFolders"}},
	{ID: ":stripDebugDebugSymbols", Kind: NoSource},
	{ID: ":validateSigningDebug", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":writeDebugAppMetadata", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":writeDebugSigningConfigVersions", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":mergeDebugJavaResource", Kind: Cacheable, Inputs: []string{Build}},
	{ID: ":packageDebug", Kind: NonCacheable,
		DependsOn: []string{":mergeProjectDexDebug", ":mergeExtDexDebug", ":mergeLibDexDebug", ":compressDebugAssets", ":mergeDebugNativeLibs"}},
	{ID: ":assembleDebug", Kind: NoActions, DependsOn: []string{":packageDebug"}},
}
