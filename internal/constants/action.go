package constants

// ActionType tags the variants of the Action union proposed by the LLM.
// Values are upper snake_case to match the wire format of LLM responses.
type ActionType string

// Action type constants. Web-targeted variants carry an element_id referring
// into the current scraped page.
const (
	ActionTypeClick        ActionType = "CLICK"
	ActionTypeInputText    ActionType = "INPUT_TEXT"
	ActionTypeUploadFile   ActionType = "UPLOAD_FILE"
	ActionTypeSelectOption ActionType = "SELECT_OPTION"
	ActionTypeCheckbox     ActionType = "CHECKBOX"
	ActionTypeWait         ActionType = "WAIT"
	ActionTypeNullAction   ActionType = "NULL_ACTION"
	ActionTypeSolveCaptcha ActionType = "SOLVE_CAPTCHA"
	ActionTypeTerminate    ActionType = "TERMINATE"
	ActionTypeComplete     ActionType = "COMPLETE"
)

// String returns the string representation of the ActionType.
func (t ActionType) String() string {
	return string(t)
}

// ArtifactType tags the durable blobs captured during task execution.
type ArtifactType string

// Artifact type constants.
const (
	ArtifactTypeScreenshotAction           ArtifactType = "screenshot_action"
	ArtifactTypeScreenshotFinal            ArtifactType = "screenshot_final"
	ArtifactTypeHTMLScrape                 ArtifactType = "html_scrape"
	ArtifactTypeHTMLAction                 ArtifactType = "html_action"
	ArtifactTypeRecording                  ArtifactType = "recording"
	ArtifactTypeHAR                        ArtifactType = "har"
	ArtifactTypeTrace                      ArtifactType = "trace"
	ArtifactTypeVisibleElementsIDXPathMap  ArtifactType = "visible_elements_id_xpath_map"
	ArtifactTypeVisibleElementsTree        ArtifactType = "visible_elements_tree"
	ArtifactTypeVisibleElementsTreeTrimmed ArtifactType = "visible_elements_tree_trimmed"
)

// String returns the string representation of the ArtifactType.
func (t ArtifactType) String() string {
	return string(t)
}
