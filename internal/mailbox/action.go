package mailbox

import "github.io/infrasutra/holomail/internal/store"

// BulkAction is the closed set of state transitions a bulk update can apply.
type BulkAction int

const (
	ActionUnknown BulkAction = iota
	ActionArchive
	ActionDelete
	ActionMarkRead
	ActionMarkUnread
	ActionMoveFolder
	ActionAddTag
	ActionRemoveTag
)

var actionNames = map[BulkAction]string{
	ActionArchive:    "archive",
	ActionDelete:     "delete",
	ActionMarkRead:   "mark_read",
	ActionMarkUnread: "mark_unread",
	ActionMoveFolder: "move_folder",
	ActionAddTag:     "add_tag",
	ActionRemoveTag:  "remove_tag",
}

// ParseBulkAction maps a wire name to its action; unrecognized names map to
// ActionUnknown.
func ParseBulkAction(name string) BulkAction {
	for action, n := range actionNames {
		if n == name {
			return action
		}
	}
	return ActionUnknown
}

func (a BulkAction) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

const (
	msgNoValidAction   = "No valid action provided"
	msgFolderRequired  = "folder is required for move_folder"
	msgTagRequired     = "tag is required for add_tag and remove_tag"
	folderArchive      = "archive"
	folderTrash        = "trash"
	defaultFolder      = "inbox"
	defaultTagColor    = "#60a5fa"
	previewLength      = 140
	defaultEventsLimit = 20
)

// plan turns an action and its parameters into a store update. When the
// action cannot be applied it returns ok=false and the reason.
func (a BulkAction) plan(folder, tag string) (update store.EmailUpdate, message string, ok bool) {
	yes, no := true, false
	switch a {
	case ActionArchive:
		f := folderArchive
		return store.EmailUpdate{IsArchived: &yes, Folder: &f}, "", true
	case ActionDelete:
		f := folderTrash
		return store.EmailUpdate{IsDeleted: &yes, Folder: &f}, "", true
	case ActionMarkRead:
		return store.EmailUpdate{IsRead: &yes}, "", true
	case ActionMarkUnread:
		return store.EmailUpdate{IsRead: &no}, "", true
	case ActionMoveFolder:
		if folder == "" {
			return store.EmailUpdate{}, msgFolderRequired, false
		}
		return store.EmailUpdate{Folder: &folder}, "", true
	case ActionAddTag:
		if tag == "" {
			return store.EmailUpdate{}, msgTagRequired, false
		}
		return store.EmailUpdate{AddTag: tag}, "", true
	case ActionRemoveTag:
		if tag == "" {
			return store.EmailUpdate{}, msgTagRequired, false
		}
		return store.EmailUpdate{RemoveTag: tag}, "", true
	default:
		return store.EmailUpdate{}, msgNoValidAction, false
	}
}
