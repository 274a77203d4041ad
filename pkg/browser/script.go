package browser

import (
	"encoding/json"
	"fmt"
)

// resolveJS evaluates to the array of elements a locator chain addresses
const resolveJS = `(function(steps){
  var roots = [document];
  for (var i = 0; i < steps.length; i++) {
    var st = steps[i], found = [];
    for (var r = 0; r < roots.length; r++) {
      var els = roots[r].querySelectorAll(st.css);
      for (var j = 0; j < els.length; j++) {
        var el = els[j];
        if (st.text && (el.textContent || '').toLowerCase().indexOf(st.text) === -1) continue;
        if (found.indexOf(el) === -1) found.push(el);
      }
    }
    if (st.nth >= 0) found = st.nth < found.length ? [found[st.nth]] : [];
    roots = found;
  }
  return roots;
})`

const (
	opCount = `return els.length;`
	opVisible = `if (!els.length) return false;
  var el = els[0], rect = el.getBoundingClientRect(), style = window.getComputedStyle(el);
  return rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none';`
	opText  = `return els.length ? {ok: true, v: els[0].textContent || ''} : {ok: false, v: ''};`
	opClick = `if (!els.length) return false;
  els[0].scrollIntoView({block: 'center'});
  els[0].click();
  return true;`
	opCheck = `if (!els.length) return false;
  if (!els[0].checked) els[0].click();
  return true;`
)

// locatorScript builds a self-contained expression applying op to the
// elements matched by steps.
func locatorScript(steps []step, op string) (string, error) {
	raw, err := json.Marshal(steps)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(function(){ var els = %s(%s);\n  %s\n})()", resolveJS, raw, op), nil
}

func attributeOp(name string) string {
	quoted, _ := json.Marshal(name)
	return fmt.Sprintf(`if (!els.length) return {ok: false, v: ''};
  var v = els[0].getAttribute(%s);
  return v === null ? {ok: false, v: ''} : {ok: true, v: v};`, quoted)
}

// optional carries a nullable string result out of Evaluate
type optional struct {
	OK    bool   `json:"ok"`
	Value string `json:"v"`
}
