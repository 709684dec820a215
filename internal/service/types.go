package service

// StatusResponse は get_status のレスポンス
type StatusResponse struct {
	Attached    bool
	ProcessName string
	ProcessID   int
}

// ProcessInfoResponse は get_process_info のレスポンス
type ProcessInfoResponse struct {
	ID           int
	Name         string
	Path         string
	ModuleCount  int
	SectionCount int
}

// ReadMemoryResponse は read_memory のレスポンス
type ReadMemoryResponse struct {
	Address uint64
	Data    []byte
}

// WriteMemoryResponse は write_memory のレスポンス
type WriteMemoryResponse struct {
	Address      uint64
	BytesWritten int
}

// ClassSummary はクラス一覧の1件
type ClassSummary struct {
	ID        string
	Name      string
	Address   string
	Comment   string
	Size      int
	NodeCount int
}

// ClassDetail はクラスとノード列
type ClassDetail struct {
	ClassSummary
	Nodes []NodeRecord
}

// NodeRecord はシリアライズ済みのノード
// Children はコンテナのみ、InnerType はラッパーのみ、Count は配列のみ意味を持つ
type NodeRecord struct {
	Index     int
	Type      string
	Name      string
	Offset    int
	Size      int
	Comment   string
	Container bool
	Children  []NodeRecord
	InnerType string
	Count     int
}

// CreateClassRequest は create_class のリクエスト
type CreateClassRequest struct {
	Name    string
	Address string
}

// AddNodeRequest は add_node のリクエスト
type AddNodeRequest struct {
	Class string
	Type  string
	Name  string
}

// NodeEditRequest は rename_node / set_comment / change_node_type のリクエスト
// Value はそれぞれ新しい名前・コメント・型名
type NodeEditRequest struct {
	Class string
	Index int
	Value string
}
