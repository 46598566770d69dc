package workflows

// Router 地图点击的唯一入口 固定优先级 每次点击只派发给一个工作流
type Router struct {
	gcp *GcpPlacement
	csv *CsvAttach
	sel *FeatureSelect
}

func NewRouter(gcp *GcpPlacement, csv *CsvAttach, sel *FeatureSelect) *Router {
	return &Router{gcp: gcp, csv: csv, sel: sel}
}

// HandleClick 配准落点优先于CSV落点 都未就绪时走要素选择
func (r *Router) HandleClick(c Click) {
	if r.gcp.WantsClick() {
		r.gcp.HandleMapClick(c.Point)
		return
	}
	if r.csv.WantsClick() {
		r.csv.HandleMapClick(c.Point)
		return
	}
	r.sel.HandleClick(c)
}
