package planner

import (
	"os"
	"path/filepath"
)

// OutState 是输出目录的现状（只做 ReadDir，不读文件内容）。
type OutState struct {
	OutDir   string
	Existing map[string]struct{}
}

// ReadOutState 读取 outDir 的现状；目录不存在时返回空状态且不报错。
func ReadOutState(outDir string) (OutState, error) {
	st := OutState{OutDir: outDir, Existing: map[string]struct{}{}}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return OutState{}, err
	}
	for _, e := range entries {
		st.Existing[e.Name()] = struct{}{}
	}
	return st, nil
}

// PagePlan 是单个页面的执行计划。
type PagePlan struct {
	Name string
	Path string
	// Exists 表示输出目录已有同名条目。
	Exists bool
	// Skip=true 时不生成（已存在且未指定 --force）。
	Skip bool
}

// PlanPage 基于 OutState 生成确定性的计划（不做任何写入）。
func PlanPage(name string, st OutState, force bool) PagePlan {
	_, exists := st.Existing[name]
	return PagePlan{
		Name:   name,
		Path:   filepath.Join(st.OutDir, name),
		Exists: exists,
		Skip:   exists && !force,
	}
}
