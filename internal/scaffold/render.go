package scaffold

import (
	"fmt"
	"strings"
)

const indent = "    "

// file is one generated project file, relative to the root.
type file struct {
	path    string
	content string
}

func (p *Project) render(apply func(string) string) []file {
	files := []file{
		{path: "settings.gradle", content: p.renderSettings()},
		{path: "build.gradle", content: p.renderBuild()},
		{path: "gradle.properties", content: renderProperties()},
		{path: "src/main/AndroidManifest.xml", content: p.renderManifest()},
	}
	for _, src := range p.sources {
		files = append(files, file{
			path:    SourceRoot + "/" + src.Path,
			content: apply(src.Content),
		})
	}
	return files
}

func (p *Project) renderSettings() string {
	var b strings.Builder
	b.WriteString("pluginManagement {\n")
	writeRepositories(&b, p.settings.Repositories, 1)
	b.WriteString("}\n\n")
	name := p.settings.Name
	if name == "" {
		name = "app"
	}
	fmt.Fprintf(&b, "rootProject.name = '%s'\n", name)
	return b.String()
}

func (p *Project) renderBuild() string {
	var b strings.Builder

	b.WriteString("buildscript {\n")
	writeRepositories(&b, p.settings.Repositories, 1)
	b.WriteString(indent + "dependencies {\n")
	for _, cp := range p.settings.Classpath {
		fmt.Fprintf(&b, "%sclasspath '%s'\n", indent+indent, cp)
	}
	b.WriteString(indent + "}\n")
	b.WriteString("}\n\n")

	for _, plugin := range p.settings.Plugins {
		fmt.Fprintf(&b, "apply plugin: '%s'\n", plugin)
	}
	if len(p.settings.Plugins) > 0 {
		b.WriteString("\n")
	}

	a := p.settings.Android
	b.WriteString("android {\n")
	fmt.Fprintf(&b, "%scompileSdkVersion %d\n", indent, a.CompileSDK)
	b.WriteString(indent + "defaultConfig {\n")
	fmt.Fprintf(&b, "%sapplicationId \"%s\"\n", indent+indent, a.Namespace)
	fmt.Fprintf(&b, "%sminSdkVersion %d\n", indent+indent, a.MinSDK)
	fmt.Fprintf(&b, "%stargetSdkVersion %d\n", indent+indent, a.TargetSDK)
	b.WriteString(indent + "}\n")
	b.WriteString(indent + "compileOptions {\n")
	b.WriteString(indent + indent + "sourceCompatibility JavaVersion.VERSION_1_8\n")
	b.WriteString(indent + indent + "targetCompatibility JavaVersion.VERSION_1_8\n")
	b.WriteString(indent + "}\n")
	b.WriteString("}\n\n")

	b.WriteString("allprojects {\n")
	writeRepositories(&b, p.settings.Repositories, 1)
	b.WriteString("}\n\n")

	b.WriteString("dependencies {\n")
	for _, dep := range p.dependencies {
		fmt.Fprintf(&b, "%s%s\n", indent, dep)
	}
	b.WriteString("}\n")

	return b.String()
}

func renderProperties() string {
	return "org.gradle.caching=true\nandroid.useAndroidX=true\n"
}

func (p *Project) renderManifest() string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<manifest xmlns:android=\"http://schemas.android.com/apk/res/android\"\n")
	fmt.Fprintf(&b, "%spackage=\"%s\">\n", indent, p.settings.Android.Namespace)
	fmt.Fprintf(&b, "%s<application android:name=\"%s\" />\n", indent, p.appClass)
	b.WriteString("</manifest>\n")
	return b.String()
}

func writeRepositories(b *strings.Builder, repos []string, depth int) {
	pad := strings.Repeat(indent, depth)
	b.WriteString(pad + "repositories {\n")
	for _, repo := range repos {
		fmt.Fprintf(b, "%s%s%s\n", pad, indent, repo)
	}
	b.WriteString(pad + "}\n")
}
