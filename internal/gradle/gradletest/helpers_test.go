package gradletest

import "github.com/remcomokveld/dagger/internal/gradle"

func gradleInvocation(dir string) gradle.Invocation {
	return gradle.Invocation{Dir: dir, Command: "gradle", Args: []string{"assembleDebug", "--build-cache"}}
}
