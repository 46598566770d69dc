package workflows

import (
	"github.com/GrainArc/TraceMap/rendersync"
	"github.com/GrainArc/TraceMap/workspace"
)

// FeatureSelect 要素选择 无内部状态 配准或CSV落点待命时被路由挂起
type FeatureSelect struct {
	store *workspace.Workspace
	sync  *rendersync.Synchronizer
}

func NewFeatureSelect(store *workspace.Workspace, sync *rendersync.Synchronizer) *FeatureSelect {
	return &FeatureSelect{store: store, sync: sync}
}

func (fs *FeatureSelect) HandleClick(c Click) {
	hits := fs.sync.HitTest(c.Point)
	if len(hits) == 0 {
		// 空点击 普通点击清空选择 多选点击保持
		if !c.Multi {
			sel := fs.store.Selection
			if sel.LayerBSM != "" || len(sel.FeatureBSMs) > 0 {
				fs.store.SetSelection("", nil)
			}
		}
		return
	}

	top := hits[0]
	if !c.Multi {
		fs.store.SetSelection(top.LayerBSM, []string{top.BSM})
		return
	}

	sel := fs.store.Selection
	if sel.LayerBSM != top.LayerBSM {
		// 跨图层多选按新选择处理
		fs.store.SetSelection(top.LayerBSM, []string{top.BSM})
		return
	}
	if sel.Contains(top.BSM) {
		var kept []string
		for _, bsm := range sel.FeatureBSMs {
			if bsm != top.BSM {
				kept = append(kept, bsm)
			}
		}
		fs.store.SetSelection(sel.LayerBSM, kept)
	} else {
		next := append(append([]string{}, sel.FeatureBSMs...), top.BSM)
		fs.store.SetSelection(sel.LayerBSM, next)
	}
}
